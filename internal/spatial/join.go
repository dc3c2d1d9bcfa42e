package spatial

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
)

// JoinResult is the output of CountHospitalsByDistrict.
type JoinResult struct {
	Districts []domain.District
	Hospitals []domain.Hospital
	Unmatched int
}

// CountHospitalsByDistrict assigns every hospital to the district containing
// it and stores the per-district count in District.Hospitals. Districts keep
// their input order and get zero when nothing falls inside them. Inputs are
// not modified.
func CountHospitalsByDistrict(districts []domain.District, hospitals []domain.Hospital) JoinResult {
	out := make([]domain.District, len(districts))
	copy(out, districts)
	for i := range out {
		out[i].Hospitals = 0
	}

	idx := NewIndex(out)
	enriched := make([]domain.Hospital, len(hospitals))
	unmatched := 0
	for i, h := range hospitals {
		pos, ok := idx.LocateIndex(h.Point)
		if ok {
			out[pos].Hospitals++
		} else {
			unmatched++
		}
		enriched[i] = domain.EnrichWithDistrict(h, positionLocator{idx: idx, pos: pos, ok: ok})
	}

	return JoinResult{Districts: out, Hospitals: enriched, Unmatched: unmatched}
}

// positionLocator replays a lookup already done by the join loop.
type positionLocator struct {
	idx *Index
	pos int
	ok  bool
}

func (l positionLocator) Locate(orb.Point) (domain.District, bool) {
	if !l.ok {
		return domain.District{}, false
	}
	return l.idx.districts[l.pos], true
}

// Stats summarizes hospital coverage over districts.
type Stats struct {
	Districts        int     `json:"districts"`
	TotalHospitals   int     `json:"total_hospitals"`
	WithHospitals    int     `json:"with_hospitals"`
	WithoutHospitals int     `json:"without_hospitals"`
	PercentWithout   float64 `json:"percent_without"`
}

// DistrictStats computes coverage figures from joined districts.
func DistrictStats(districts []domain.District) Stats {
	s := Stats{Districts: len(districts)}
	for _, d := range districts {
		s.TotalHospitals += d.Hospitals
		if d.Hospitals > 0 {
			s.WithHospitals++
		} else {
			s.WithoutHospitals++
		}
	}
	if s.Districts > 0 {
		s.PercentWithout = float64(s.WithoutHospitals) / float64(s.Districts) * 100
	}
	return s
}

// RankedDistrict is one row of the district ranking.
type RankedDistrict struct {
	Rank      int    `json:"rank"`
	Ubigeo    string `json:"ubigeo"`
	Name      string `json:"name"`
	Hospitals int    `json:"n_hospitales"`
	position  int
}

// Ranking is the top-N district table with its aggregate figures.
type Ranking struct {
	Rows  []RankedDistrict `json:"rows"`
	Total int              `json:"total"`
	Mean  float64          `json:"mean"`
	Max   int              `json:"max"`
}

// Positions returns the input positions of the ranked districts.
func (r Ranking) Positions() []int {
	out := make([]int, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.position
	}
	return out
}

// TopDistricts ranks the n districts with the most hospitals. Ties keep
// input order.
func TopDistricts(districts []domain.District, n int) Ranking {
	order := make([]int, len(districts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return districts[order[a]].Hospitals > districts[order[b]].Hospitals
	})
	if n < 0 {
		n = 0
	}
	if n > len(order) {
		n = len(order)
	}

	r := Ranking{Rows: make([]RankedDistrict, 0, n)}
	for rank, pos := range order[:n] {
		d := districts[pos]
		name := d.NormalizedName
		if name == "" {
			name = domain.NormalizeName(d.Name)
		}
		r.Rows = append(r.Rows, RankedDistrict{
			Rank:      rank + 1,
			Ubigeo:    d.Ubigeo,
			Name:      name,
			Hospitals: d.Hospitals,
			position:  pos,
		})
		r.Total += d.Hospitals
		if d.Hospitals > r.Max {
			r.Max = d.Hospitals
		}
	}
	if n > 0 {
		r.Mean = float64(r.Total) / float64(n)
	}
	return r
}
