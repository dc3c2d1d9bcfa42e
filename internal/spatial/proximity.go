package spatial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
)

// DefaultRadius is the proximity buffer around each populated center, in metres.
const DefaultRadius = 10000.0

// ErrNoCenters is returned when a department has no populated centers.
var ErrNoCenters = errors.New("no populated centers in department")

// Kind selects which center of a proximity result to show.
type Kind string

const (
	KindIsolated     Kind = "isolated"
	KindConcentrated Kind = "concentrated"
)

// ParseKind accepts the English or Spanish name of a kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "isolated", "aislado":
		return KindIsolated, nil
	case "concentrated", "concentrado":
		return KindConcentrated, nil
	default:
		return "", fmt.Errorf("unknown proximity kind %q", s)
	}
}

// CenterCount is a populated center with the number of hospitals in its buffer.
type CenterCount struct {
	Center  domain.PopulatedCenter `json:"center"`
	NumHosp int                    `json:"num_hosp"`
}

// ProximityResult holds the per-center counts of one department.
type ProximityResult struct {
	Department string            `json:"department"`
	Radius     float64           `json:"radius_m"`
	Centers    []CenterCount     `json:"centers"`
	Hospitals  []domain.Hospital `json:"-"`
	points     *PointIndex
}

// Isolated returns the center with the fewest hospitals in range, the first
// one on ties.
func (r *ProximityResult) Isolated() CenterCount {
	if len(r.Centers) == 0 {
		return CenterCount{}
	}
	best := 0
	for i, c := range r.Centers {
		if c.NumHosp < r.Centers[best].NumHosp {
			best = i
		}
	}
	return r.Centers[best]
}

// Concentrated returns the center with the most hospitals in range, the first
// one on ties.
func (r *ProximityResult) Concentrated() CenterCount {
	if len(r.Centers) == 0 {
		return CenterCount{}
	}
	best := 0
	for i, c := range r.Centers {
		if c.NumHosp > r.Centers[best].NumHosp {
			best = i
		}
	}
	return r.Centers[best]
}

// Select returns the center for kind.
func (r *ProximityResult) Select(kind Kind) CenterCount {
	if kind == KindConcentrated {
		return r.Concentrated()
	}
	return r.Isolated()
}

// Mean is the average hospital count per center.
func (r *ProximityResult) Mean() float64 {
	if len(r.Centers) == 0 {
		return 0
	}
	total := 0
	for _, c := range r.Centers {
		total += c.NumHosp
	}
	return float64(total) / float64(len(r.Centers))
}

// Max is the largest hospital count of any center.
func (r *ProximityResult) Max() int {
	return r.Concentrated().NumHosp
}

// HospitalsNear lists the department hospitals inside the buffer of c.
func (r *ProximityResult) HospitalsNear(c CenterCount) []domain.Hospital {
	points := r.points
	if points == nil {
		points = NewPointIndex(r.Hospitals)
	}
	return points.Hospitals(points.WithinRadius(c.Center.Point, r.Radius))
}

// AnalyzeProximity counts, for every populated center of department, the
// department hospitals within radius metres. Centers without a department
// attribute are placed with locator when one is given.
func AnalyzeProximity(centers []domain.PopulatedCenter, hospitals []domain.Hospital, department string, radius float64, locator domain.DistrictLocator) (*ProximityResult, error) {
	want := domain.NormalizeName(department)
	if radius <= 0 {
		radius = DefaultRadius
	}

	if want == "" || strings.EqualFold(want, domain.AllDepartments) {
		return nil, errors.New("analyze proximity: department required")
	}
	deptHospitals := domain.FilterByDepartment(hospitals, want)

	var deptCenters []domain.PopulatedCenter
	for _, c := range centers {
		if centerDepartment(c, locator) == want {
			deptCenters = append(deptCenters, c)
		}
	}
	if len(deptCenters) == 0 {
		return nil, fmt.Errorf("analyze proximity %s: %w", want, ErrNoCenters)
	}

	points := NewPointIndex(deptHospitals)
	counts := make([]CenterCount, len(deptCenters))
	for i, c := range deptCenters {
		counts[i] = CenterCount{Center: c, NumHosp: points.CountWithinRadius(c.Point, radius)}
	}

	return &ProximityResult{
		Department: want,
		Radius:     radius,
		Centers:    counts,
		Hospitals:  deptHospitals,
		points:     points,
	}, nil
}

func centerDepartment(c domain.PopulatedCenter, locator domain.DistrictLocator) string {
	if d := domain.NormalizeName(c.Department); d != "" {
		return d
	}
	if locator == nil {
		return ""
	}
	if d, ok := locator.Locate(c.Point); ok {
		return domain.NormalizeName(d.Department)
	}
	return ""
}

// Comparison is one department column of the proximity comparison panel.
type Comparison struct {
	Department   string      `json:"department"`
	Centers      int         `json:"centers"`
	Hospitals    int         `json:"hospitals"`
	Mean         float64     `json:"mean"`
	Max          int         `json:"max"`
	Isolated     CenterCount `json:"isolated"`
	Concentrated CenterCount `json:"concentrated"`
}

// Compare summarizes results side by side, in argument order.
func Compare(results ...*ProximityResult) []Comparison {
	out := make([]Comparison, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		out = append(out, Comparison{
			Department:   r.Department,
			Centers:      len(r.Centers),
			Hospitals:    len(r.Hospitals),
			Mean:         r.Mean(),
			Max:          r.Max(),
			Isolated:     r.Isolated(),
			Concentrated: r.Concentrated(),
		})
	}
	return out
}
