// Package spatial implements the district join and populated-center proximity
// analysis over WGS-84 geometries.
package spatial

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
)

// Index answers point-in-district queries. Candidates come from an R-tree over
// district bounding boxes and are confirmed with an exact containment test.
type Index struct {
	districts []domain.District
	tree      rtree.RTreeG[int]
}

// NewIndex builds an Index over districts. The slice is retained, not copied.
func NewIndex(districts []domain.District) *Index {
	idx := &Index{districts: districts}
	for i, d := range districts {
		if len(d.Geometry) == 0 {
			continue
		}
		b := d.Geometry.Bound()
		idx.tree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, i)
	}
	return idx
}

// Len returns the number of indexed districts.
func (x *Index) Len() int { return x.tree.Len() }

// LocateIndex returns the position of the first district, in input order,
// whose polygon contains p.
func (x *Index) LocateIndex(p orb.Point) (int, bool) {
	best := -1
	x.tree.Search(
		[2]float64{p[0], p[1]},
		[2]float64{p[0], p[1]},
		func(_, _ [2]float64, i int) bool {
			if best != -1 && i > best {
				return true
			}
			if planar.MultiPolygonContains(x.districts[i].Geometry, p) {
				best = i
			}
			return true
		},
	)
	return best, best != -1
}

// Locate implements domain.DistrictLocator.
func (x *Index) Locate(p orb.Point) (domain.District, bool) {
	i, ok := x.LocateIndex(p)
	if !ok {
		return domain.District{}, false
	}
	return x.districts[i], true
}

// PointIndex is an R-tree over hospital positions for radius queries.
type PointIndex struct {
	hospitals []domain.Hospital
	tree      rtree.RTreeG[int]
}

// NewPointIndex indexes hospitals by their WGS-84 point.
func NewPointIndex(hospitals []domain.Hospital) *PointIndex {
	idx := &PointIndex{hospitals: hospitals}
	for i, h := range hospitals {
		pt := [2]float64{h.Point[0], h.Point[1]}
		idx.tree.Insert(pt, pt, i)
	}
	return idx
}

// Len returns the number of indexed hospitals.
func (x *PointIndex) Len() int { return x.tree.Len() }

// WithinRadius returns the positions of hospitals whose great-circle distance
// to center is at most metres, in input order.
func (x *PointIndex) WithinRadius(center orb.Point, metres float64) []int {
	if metres < 0 {
		return nil
	}
	b := geo.NewBoundAroundPoint(center, metres)
	var out []int
	x.tree.Search(
		[2]float64{b.Min[0], b.Min[1]},
		[2]float64{b.Max[0], b.Max[1]},
		func(_, _ [2]float64, i int) bool {
			if geo.DistanceHaversine(center, x.hospitals[i].Point) <= metres {
				out = append(out, i)
			}
			return true
		},
	)
	sort.Ints(out)
	return out
}

// CountWithinRadius is WithinRadius without materializing the result.
func (x *PointIndex) CountWithinRadius(center orb.Point, metres float64) int {
	if metres < 0 {
		return 0
	}
	b := geo.NewBoundAroundPoint(center, metres)
	n := 0
	x.tree.Search(
		[2]float64{b.Min[0], b.Min[1]},
		[2]float64{b.Max[0], b.Max[1]},
		func(_, _ [2]float64, i int) bool {
			if geo.DistanceHaversine(center, x.hospitals[i].Point) <= metres {
				n++
			}
			return true
		},
	)
	return n
}

// Hospitals returns the hospitals at the given positions.
func (x *PointIndex) Hospitals(positions []int) []domain.Hospital {
	out := make([]domain.Hospital, 0, len(positions))
	for _, i := range positions {
		out = append(out, x.hospitals[i])
	}
	return out
}
