package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

//go:embed templates/leaflet.html.tmpl
var templateFS embed.FS

var leafletTmpl = template.Must(template.ParseFS(templateFS, "templates/leaflet.html.tmpl"))

// National map view.
const (
	NationalTitle = "Hospitales públicos del Perú"
	NationalLat   = -9.19
	NationalLon   = -75.0152
	NationalZoom  = 6
)

// Layer is one GeoJSON overlay of a Leaflet page.
type Layer struct {
	Name    string                     `json:"name"`
	Color   string                     `json:"color"`
	Cluster bool                       `json:"cluster"`
	Fit     bool                       `json:"fit"`
	Data    *geojson.FeatureCollection `json:"data"`
}

// Page is an interactive map page.
type Page struct {
	Title  string
	Lat    float64
	Lon    float64
	Zoom   int
	Height int
	Layers []Layer
}

// WritePage renders page as a standalone HTML document.
func WritePage(w io.Writer, page Page) error {
	if page.Height <= 0 {
		page.Height = 600
	}
	if page.Layers == nil {
		page.Layers = []Layer{}
	}
	if err := leafletTmpl.Execute(w, page); err != nil {
		return fmt.Errorf("render leaflet page: %w", err)
	}
	return nil
}

// NationalPage shows the first limit hospitals as clustered markers over
// the whole country.
func NationalPage(hospitals []domain.Hospital, limit int) Page {
	return Page{
		Title:  NationalTitle,
		Lat:    NationalLat,
		Lon:    NationalLon,
		Zoom:   NationalZoom,
		Height: 600,
		Layers: []Layer{{
			Name:    "Hospitales",
			Color:   "green",
			Cluster: true,
			Data:    HospitalsGeoJSON(hospitals, limit),
		}},
	}
}

// ProximityPage shows the center selected by kind with its buffer and the
// hospitals inside it.
func ProximityPage(res *spatial.ProximityResult, kind spatial.Kind) Page {
	label, color := "más aislado", "red"
	if kind == spatial.KindConcentrated {
		label, color = "más concentrado", "green"
	}
	sel := res.Select(kind)
	return Page{
		Title:  fmt.Sprintf("%s: centro poblado %s (%s, %d hospitales)", res.Department, label, sel.Center.Name, sel.NumHosp),
		Lat:    sel.Center.Point.Lat(),
		Lon:    sel.Center.Point.Lon(),
		Zoom:   11,
		Height: 500,
		Layers: []Layer{{
			Name:  "Proximidad",
			Color: color,
			Fit:   true,
			Data:  ProximityGeoJSON(res, kind),
		}},
	}
}
