package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

// join counts hospitals per district and stamps each hospital with the
// district that contains it.
func (p *Pipeline) join(st *state, districts []domain.District) {
	start := time.Now()
	res := spatial.CountHospitalsByDistrict(districts, st.hospitals)
	st.districts = res.Districts
	st.hospitals = res.Hospitals
	st.unmatched = res.Unmatched
	st.index = spatial.NewIndex(st.districts)

	p.metrics.JoinUnmatched.Set(float64(res.Unmatched))
	p.logger.Info("district join complete",
		"districts", len(res.Districts),
		"unmatched", res.Unmatched,
		"duration", time.Since(start),
	)
}

// export publishes the joined district counts when an exporter is configured.
func (p *Pipeline) export(ctx context.Context, st *state) error {
	if p.exporter == nil {
		return nil
	}
	counts := DistrictCounts(st.districts)
	if err := p.exporter.ExportDistricts(ctx, counts); err != nil {
		return fmt.Errorf("export district counts: %w", err)
	}
	p.metrics.DistrictsExported.Add(float64(len(counts)))
	p.logger.Info("district counts exported", "districts", len(counts))
	return nil
}

// DistrictCounts converts joined districts into export records stamped with
// the current time.
func DistrictCounts(districts []domain.District) []domain.DistrictCount {
	now := domain.Now().UTC()
	out := make([]domain.DistrictCount, len(districts))
	for i, d := range districts {
		name := d.NormalizedName
		if name == "" {
			name = domain.NormalizeName(d.Name)
		}
		out[i] = domain.DistrictCount{
			Ubigeo:      d.Ubigeo,
			Name:        name,
			Department:  d.Department,
			Hospitals:   d.Hospitals,
			GeneratedAt: now,
		}
	}
	return out
}
