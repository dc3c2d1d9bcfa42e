package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

//go:embed templates/index.html.tmpl
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))

// indexPage is the data behind the three dashboard tabs.
type indexPage struct {
	Summary        domain.Summary
	Departments    []domain.DepartmentCount
	Stages         map[string]string
	Stats          spatial.Stats
	Top            spatial.Ranking
	DistrictsError string
	Proximity      []proximityPanel
	RadiusKm       float64
}

// proximityPanel is one department of the proximity tab. Exactly one of
// Comparison and Error is set.
type proximityPanel struct {
	Department string
	Comparison *spatial.Comparison
	Error      string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sum, err := s.dash.Summary(domain.AllDepartments)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	counts, err := s.dash.DepartmentCounts(10)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page := indexPage{
		Summary:     sum,
		Departments: counts,
		Stages:      s.dash.StageStatus(),
		RadiusKm:    s.opts.Radius / 1000,
	}
	if stats, err := s.dash.DistrictStats(); err != nil {
		page.DistrictsError = err.Error()
	} else {
		page.Stats = stats
		page.Top, _ = s.dash.TopDistricts(10)
	}
	for _, dept := range s.opts.ProximityDepartments {
		panel := proximityPanel{Department: dept}
		if res, err := s.dash.Proximity(r.Context(), dept, s.opts.Radius); err != nil {
			panel.Error = err.Error()
		} else {
			panel.Comparison = &spatial.Compare(res)[0]
		}
		page.Proximity = append(page.Proximity, panel)
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, page); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client went away
}
