package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

func isAll(department string) bool {
	d := strings.TrimSpace(department)
	return d == "" || strings.EqualFold(d, domain.AllDepartments)
}

// hospitalsFor returns the hospitals of department, or ErrUnknownDepartment.
func hospitalsFor(st *state, department string) ([]domain.Hospital, error) {
	if isAll(department) {
		return st.hospitals, nil
	}
	if !domain.HasDepartment(st.hospitals, department) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDepartment, domain.NormalizeName(department))
	}
	return domain.FilterByDepartment(st.hospitals, department), nil
}

// Summary returns the headline metrics for department ("Todos" or empty for all).
func (p *Pipeline) Summary(department string) (domain.Summary, error) {
	st, err := p.snapshot()
	if err != nil {
		return domain.Summary{}, err
	}
	hs, err := hospitalsFor(st, department)
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summarize(hs), nil
}

// DepartmentCounts returns hospitals per department, largest first. top <= 0
// returns every department.
func (p *Pipeline) DepartmentCounts(top int) ([]domain.DepartmentCount, error) {
	st, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	return domain.TopDepartments(domain.CountByDepartment(st.hospitals), top), nil
}

// Departments lists the departments that have at least one hospital.
func (p *Pipeline) Departments() ([]string, error) {
	st, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	return domain.DepartmentsList(st.hospitals), nil
}

// Hospitals returns at most limit hospitals of department in registry order.
// limit <= 0 returns all of them.
func (p *Pipeline) Hospitals(department string, limit int) ([]domain.Hospital, error) {
	st, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	hs, err := hospitalsFor(st, department)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(hs) {
		hs = hs[:limit]
	}
	return hs, nil
}

// districtState returns the snapshot if the district stage succeeded.
func (p *Pipeline) districtState() (*state, error) {
	st, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	if e := st.stageErrs[StageDistricts]; e != nil {
		return nil, e
	}
	return st, nil
}

// Districts returns the districts with their hospital counts.
func (p *Pipeline) Districts() ([]domain.District, error) {
	st, err := p.districtState()
	if err != nil {
		return nil, err
	}
	return st.districts, nil
}

// DistrictStats summarizes hospital coverage over districts.
func (p *Pipeline) DistrictStats() (spatial.Stats, error) {
	st, err := p.districtState()
	if err != nil {
		return spatial.Stats{}, err
	}
	return spatial.DistrictStats(st.districts), nil
}

// TopDistricts ranks the n districts with the most hospitals.
func (p *Pipeline) TopDistricts(n int) (spatial.Ranking, error) {
	st, err := p.districtState()
	if err != nil {
		return spatial.Ranking{}, err
	}
	return spatial.TopDistricts(st.districts, n), nil
}

// Unmatched returns the number of hospitals outside every district.
func (p *Pipeline) Unmatched() (int, error) {
	st, err := p.districtState()
	if err != nil {
		return 0, err
	}
	return st.unmatched, nil
}

func proximityKey(department string, radius float64) string {
	return fmt.Sprintf("%s|%g", domain.NormalizeName(department), radius)
}

// Proximity counts hospitals around every populated center of department.
// Results are memoised per department and radius until the next Load.
func (p *Pipeline) Proximity(ctx context.Context, department string, radius float64) (*spatial.ProximityResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	if e := st.stageErrs[StageCenters]; e != nil {
		return nil, e
	}
	if isAll(department) {
		return nil, fmt.Errorf("%w: proximity needs a single department", ErrUnknownDepartment)
	}
	if radius <= 0 {
		radius = spatial.DefaultRadius
	}

	key := proximityKey(department, radius)
	if v, ok := p.cache.Get(key); ok {
		return v.(*spatial.ProximityResult), nil
	}

	var locator domain.DistrictLocator
	if st.index != nil {
		locator = st.index
	}
	dept := domain.NormalizeName(department)
	res, err := spatial.AnalyzeProximity(st.centers, st.hospitals, dept, radius, locator)
	if err != nil {
		p.metrics.ProximityAnalyses.WithLabelValues(departmentLabel(st, dept), "error").Inc()
		if errors.Is(err, spatial.ErrNoCenters) {
			return nil, fmt.Errorf("%w: %w", ErrUnknownDepartment, err)
		}
		return nil, err
	}
	p.metrics.ProximityAnalyses.WithLabelValues(departmentLabel(st, dept), "success").Inc()
	p.logger.Debug("proximity computed",
		"department", dept,
		"radius_m", radius,
		"centers", len(res.Centers),
		"hospitals", len(res.Hospitals),
	)
	p.cache.SetDefault(key, res)
	return res, nil
}

// unknownDepartment labels metrics for departments absent from the registry.
const unknownDepartment = "unknown"

// departmentLabel bounds the metric label set to departments with hospitals.
func departmentLabel(st *state, dept string) string {
	if domain.HasDepartment(st.hospitals, dept) {
		return dept
	}
	return unknownDepartment
}

// Compare runs Proximity for each department and summarizes them side by side.
func (p *Pipeline) Compare(ctx context.Context, departments []string, radius float64) ([]spatial.Comparison, error) {
	results := make([]*spatial.ProximityResult, 0, len(departments))
	for _, d := range departments {
		r, err := p.Proximity(ctx, d, radius)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return spatial.Compare(results...), nil
}
