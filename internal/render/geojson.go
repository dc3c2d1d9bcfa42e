package render

import (
	"fmt"
	"html"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

// DefaultMarkerLimit caps the national hospital layer.
const DefaultMarkerLimit = 500

// BufferVertices is the number of vertices of a proximity buffer ring.
const BufferVertices = 64

// Feature roles in a proximity collection.
const (
	RoleCenter   = "center"
	RoleBuffer   = "buffer"
	RoleHospital = "hospital"
)

// HospitalPopup is the marker popup for h.
func HospitalPopup(h domain.Hospital) string {
	return fmt.Sprintf("<b>%s</b><br>Departamento: %s", html.EscapeString(h.Name), html.EscapeString(h.Department))
}

func hospitalFeature(h domain.Hospital) *geojson.Feature {
	f := geojson.NewFeature(h.Point)
	f.ID = h.ID
	f.Properties["id"] = h.ID
	f.Properties["name"] = h.Name
	f.Properties["department"] = h.Department
	f.Properties["province"] = h.Province
	f.Properties["district"] = h.District
	f.Properties["category"] = h.Category
	f.Properties["popup"] = HospitalPopup(h)
	if h.DistrictUbigeo != "" {
		f.Properties["district_ubigeo"] = h.DistrictUbigeo
	}
	return f
}

// HospitalsGeoJSON returns the first limit hospitals as point features.
// limit <= 0 uses DefaultMarkerLimit.
func HospitalsGeoJSON(hospitals []domain.Hospital, limit int) *geojson.FeatureCollection {
	if limit <= 0 {
		limit = DefaultMarkerLimit
	}
	if limit < len(hospitals) {
		hospitals = hospitals[:limit]
	}
	fc := geojson.NewFeatureCollection()
	for _, h := range hospitals {
		fc.Append(hospitalFeature(h))
	}
	return fc
}

// DistrictsGeoJSON returns districts as polygons carrying n_hospitales and
// the fill color of their choropleth class.
func DistrictsGeoJSON(districts []domain.District) *geojson.FeatureCollection {
	counts := make([]int, len(districts))
	for i, d := range districts {
		counts[i] = d.Hospitals
	}
	scale := NewScale(counts, len(Palette))

	fc := geojson.NewFeatureCollection()
	for _, d := range districts {
		if len(d.Geometry) == 0 {
			continue
		}
		var g orb.Geometry = d.Geometry
		if len(d.Geometry) == 1 {
			g = d.Geometry[0]
		}
		f := geojson.NewFeature(g)
		f.ID = d.Ubigeo
		f.Properties["ubigeo"] = d.Ubigeo
		f.Properties["name"] = d.Name
		f.Properties["name_norm"] = d.NormalizedName
		f.Properties["department"] = d.Department
		f.Properties["n_hospitales"] = d.Hospitals
		f.Properties["fill"] = hexColor(scale.Color(d.Hospitals))
		fc.Append(f)
	}
	return fc
}

// BufferRing approximates the geodesic circle of radius metres around
// center with n vertices. The ring is closed.
func BufferRing(center orb.Point, radius float64, n int) orb.Ring {
	if n < 3 {
		n = BufferVertices
	}
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		bearing := 360 * float64(i) / float64(n)
		ring = append(ring, geo.PointAtBearingAndDistance(center, bearing, radius))
	}
	return append(ring, ring[0])
}

// ProximityGeoJSON returns the center selected by kind, its buffer and the
// hospitals inside it.
func ProximityGeoJSON(res *spatial.ProximityResult, kind spatial.Kind) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if res == nil || len(res.Centers) == 0 {
		return fc
	}
	sel := res.Select(kind)

	center := geojson.NewFeature(sel.Center.Point)
	center.Properties["role"] = RoleCenter
	center.Properties["kind"] = string(kind)
	center.Properties["name"] = sel.Center.Name
	center.Properties["code"] = sel.Center.Code
	center.Properties["department"] = res.Department
	center.Properties["num_hosp"] = sel.NumHosp
	center.Properties["popup"] = fmt.Sprintf("<b>%s</b><br>Hospitales en %.0f km: %d",
		html.EscapeString(sel.Center.Name), res.Radius/1000, sel.NumHosp)
	fc.Append(center)

	buffer := geojson.NewFeature(orb.Polygon{BufferRing(sel.Center.Point, res.Radius, BufferVertices)})
	buffer.Properties["role"] = RoleBuffer
	buffer.Properties["radius_m"] = res.Radius
	fc.Append(buffer)

	for _, h := range res.HospitalsNear(sel) {
		f := hospitalFeature(h)
		f.Properties["role"] = RoleHospital
		f.Properties["distance_m"] = geo.DistanceHaversine(sel.Center.Point, h.Point)
		fc.Append(f)
	}
	return fc
}
