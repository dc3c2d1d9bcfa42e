package http

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/render"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

const (
	maxTop   = 100
	maxLimit = 100000
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.dash.Summary(departmentParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := s.dash.Departments()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"all":         domain.AllDepartments,
		"departments": depts,
	})
}

func (s *Server) handleDepartmentCounts(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", 10, maxTop)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	counts, err := s.dash.DepartmentCounts(top)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) hospitals(r *http.Request) ([]domain.Hospital, error) {
	limit, err := intParam(r, "limit", s.opts.MarkerLimit, maxLimit)
	if err != nil {
		return nil, err
	}
	return s.dash.Hospitals(departmentParam(r), limit)
}

func (s *Server) handleHospitals(w http.ResponseWriter, r *http.Request) {
	hs, err := s.hospitals(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (s *Server) handleHospitalsGeoJSON(w http.ResponseWriter, r *http.Request) {
	hs, err := s.hospitals(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeGeoJSON(w, render.HospitalsGeoJSON(hs, len(hs)))
}

func (s *Server) handleDistrictsGeoJSON(w http.ResponseWriter, r *http.Request) {
	districts, err := s.dash.Districts()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeGeoJSON(w, render.DistrictsGeoJSON(districts))
}

func (s *Server) handleDistrictStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dash.DistrictStats()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTopDistricts(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", 10, maxTop)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ranking, err := s.dash.TopDistricts(n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}

// proximityResponse is the JSON view of a proximity analysis.
type proximityResponse struct {
	Department   string                `json:"department"`
	Radius       float64               `json:"radius_m"`
	Hospitals    int                   `json:"hospitals"`
	Mean         float64               `json:"mean"`
	Max          int                   `json:"max"`
	Isolated     spatial.CenterCount   `json:"isolated"`
	Concentrated spatial.CenterCount   `json:"concentrated"`
	Centers      []spatial.CenterCount `json:"centers"`
}

func (s *Server) proximity(r *http.Request) (*spatial.ProximityResult, error) {
	radius, err := radiusParam(r, s.opts.Radius)
	if err != nil {
		return nil, err
	}
	return s.dash.Proximity(r.Context(), chi.URLParam(r, "department"), radius)
}

func (s *Server) handleProximity(w http.ResponseWriter, r *http.Request) {
	res, err := s.proximity(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proximityResponse{
		Department:   res.Department,
		Radius:       res.Radius,
		Hospitals:    len(res.Hospitals),
		Mean:         res.Mean(),
		Max:          res.Max(),
		Isolated:     res.Isolated(),
		Concentrated: res.Concentrated(),
		Centers:      res.Centers,
	})
}

func kindParam(r *http.Request) (spatial.Kind, error) {
	raw := chi.URLParam(r, "kind")
	kind, err := spatial.ParseKind(raw)
	if err != nil {
		return "", badRequest("kind must be isolated or concentrated, got %q", raw)
	}
	return kind, nil
}

func (s *Server) handleProximityGeoJSON(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.proximity(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeGeoJSON(w, render.ProximityGeoJSON(res, kind))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	radius, err := radiusParam(r, s.opts.Radius)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cmp, err := s.dash.Compare(r.Context(), listParam(r, "departments", s.opts.ProximityDepartments), radius)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// version keys rendered artifacts to the loaded data.
func (s *Server) version(extra ...string) string {
	v := strconv.FormatInt(s.dash.LoadedAt().UnixNano(), 36)
	for _, e := range extra {
		v += "|" + e
	}
	return v
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, artifact, version, contentType string, fn render.Artifact) {
	body, err := s.cache.Render(artifact, version, fn)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck // client went away
}

type districtMap func(w io.Writer, districts []domain.District, opts render.MapOptions) error

func (s *Server) handleDistrictMap(artifact string, draw districtMap) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		districts, err := s.dash.Districts()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.serveArtifact(w, r, artifact, s.version(), "image/png", func(buf *bytes.Buffer) error {
			return draw(buf, districts, render.MapOptions{})
		})
	}
}

func (s *Server) handleDepartmentChart(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", 10, maxTop)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	counts, err := s.dash.DepartmentCounts(top)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveArtifact(w, r, "departments", s.version(strconv.Itoa(top)), "image/png", func(buf *bytes.Buffer) error {
		return render.DepartmentBar(buf, counts, top)
	})
}

func (s *Server) handleNationalMap(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", s.opts.MarkerLimit, maxLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	hs, err := s.dash.Hospitals(domain.AllDepartments, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveArtifact(w, r, "national", s.version(strconv.Itoa(limit)), "text/html; charset=utf-8", func(buf *bytes.Buffer) error {
		return render.WritePage(buf, render.NationalPage(hs, limit))
	})
}

func (s *Server) handleProximityMap(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.proximity(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	version := s.version(res.Department, string(kind), strconv.FormatFloat(res.Radius, 'f', -1, 64))
	s.serveArtifact(w, r, "proximity", version, "text/html; charset=utf-8", func(buf *bytes.Buffer) error {
		return render.WritePage(buf, render.ProximityPage(res, kind))
	})
}

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	raw, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw) //nolint:errcheck // client went away
}
