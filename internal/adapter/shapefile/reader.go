// Package shapefile reads the district boundary and populated-center layers
// from ESRI shapefiles.
package shapefile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/datafile"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/observability"
)

// ErrMissingAttribute is returned when a layer lacks a required attribute.
var ErrMissingAttribute = errors.New("shapefile is missing a required attribute")

// Candidate attribute names, in lookup order.
var (
	DistrictUbigeoFields     = []string{"UBIGEO", "IDDIST", "CODDIST"}
	DistrictNameFields       = []string{"DISTRITO", "NOMBDIST"}
	DistrictProvinceFields   = []string{"PROVINCIA", "NOMBPROV"}
	DistrictDepartmentFields = []string{"DEPARTAMEN", "NOMBDEP", "DEPARTAMENTO"}

	CenterNameFields       = []string{"NOM_POBLAD", "NOMBCCPP", "NOMBRE"}
	CenterDepartmentFields = []string{"DEP", "DEPARTAMEN", "NOMBDEP"}
	CenterCodeFields       = []string{"CODIGO", "COD_CCPP", "IDCCPP"}
)

// layer wraps an open shapefile with attribute lookup helpers.
type layer struct {
	path   string
	r      *shp.Reader
	fields map[string]int
}

func openLayer(path string) (*layer, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	l := &layer{path: path, r: r, fields: make(map[string]int)}
	for i, f := range r.Fields() {
		name := strings.ToUpper(strings.TrimRight(f.String(), "\x00 "))
		if _, ok := l.fields[name]; !ok {
			l.fields[name] = i
		}
	}
	return l, nil
}

func (l *layer) close() { l.r.Close() }

// field returns the index of the first candidate present, or -1.
func (l *layer) field(candidates []string) int {
	for _, c := range candidates {
		if i, ok := l.fields[c]; ok {
			return i
		}
	}
	return -1
}

func (l *layer) requireField(candidates []string) (int, error) {
	if i := l.field(candidates); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("%s: %w: one of %s", l.path, ErrMissingAttribute, strings.Join(candidates, "|"))
}

// attr reads a text attribute, decoding ISO-8859-1 when the bytes are not UTF-8.
func (l *layer) attr(row, field int) string {
	if field < 0 {
		return ""
	}
	return decodeText(l.r.ReadAttribute(row, field))
}

// fieldNames lists the attribute names of the layer in file order.
func (l *layer) fieldNames() []string {
	out := make([]string, 0, len(l.fields))
	for _, f := range l.r.Fields() {
		out = append(out, strings.ToUpper(strings.TrimRight(f.String(), "\x00 ")))
	}
	return out
}

func decodeText(s string) string {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if utf8.ValidString(s) {
		return s
	}
	if out, err := charmap.ISO8859_1.NewDecoder().String(s); err == nil {
		return out
	}
	return s
}

// projector converts layer coordinates to WGS-84. Layers are either all in
// degrees or all in UTM 18S metres.
type projector func(x, y float64) orb.Point

func projectorFor(box shp.Box) projector {
	if math.Abs(box.MinX) <= 180 && math.Abs(box.MaxX) <= 180 &&
		math.Abs(box.MinY) <= 90 && math.Abs(box.MaxY) <= 90 {
		return func(x, y float64) orb.Point { return orb.Point{x, y} }
	}
	return domain.UTM18SToWGS84
}

// DistrictReader loads the district boundary layer.
// It implements pipeline.DistrictSource.
type DistrictReader struct {
	file    string
	dirs    []string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDistrictReader creates a reader for file looked up in dirs.
func NewDistrictReader(file string, dirs []string, logger *slog.Logger, metrics *observability.Metrics) *DistrictReader {
	return &DistrictReader{file: file, dirs: dirs, logger: logger, metrics: metrics}
}

// LoadDistricts reads every district polygon with its attributes.
func (d *DistrictReader) LoadDistricts(ctx context.Context) ([]domain.District, error) {
	path, err := datafile.ResolveShapefile(d.file, d.dirs)
	if err != nil {
		return nil, fmt.Errorf("resolve district layer: %w", err)
	}
	l, err := openLayer(path)
	if err != nil {
		return nil, err
	}
	defer l.close()

	nameField, err := l.requireField(DistrictNameFields)
	if err != nil {
		return nil, err
	}
	ubigeoField := l.field(DistrictUbigeoFields)
	provField := l.field(DistrictProvinceFields)
	deptField := l.field(DistrictDepartmentFields)
	project := projectorFor(l.r.BBox())

	var out []domain.District
	skipped := 0
	for l.r.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, shape := l.r.Shape()
		geom := toMultiPolygon(shape, project)
		if len(geom) == 0 {
			skipped++
			continue
		}
		name := l.attr(row, nameField)
		out = append(out, domain.District{
			Ubigeo:         l.attr(row, ubigeoField),
			Name:           name,
			NormalizedName: domain.NormalizeName(name),
			Province:       domain.NormalizeName(l.attr(row, provField)),
			Department:     domain.NormalizeName(l.attr(row, deptField)),
			Geometry:       geom,
		})
	}
	if err := l.r.Err(); err != nil {
		return nil, fmt.Errorf("read district layer %s: %w", path, err)
	}

	d.metrics.RowsRead.WithLabelValues("districts").Add(float64(len(out)))
	d.logger.Info("district layer loaded", "path", path, "districts", len(out), "skipped", skipped)
	return out, nil
}

// toMultiPolygon assembles shapefile rings into polygons. A clockwise ring
// starts a new polygon; a counter-clockwise ring is a hole of the previous one.
func toMultiPolygon(s shp.Shape, project projector) orb.MultiPolygon {
	var parts []int32
	var points []shp.Point
	switch p := s.(type) {
	case *shp.Polygon:
		parts, points = p.Parts, p.Points
	case *shp.PolygonZ:
		parts, points = p.Parts, p.Points
	case *shp.PolygonM:
		parts, points = p.Parts, p.Points
	default:
		return nil
	}

	var mp orb.MultiPolygon
	for i := range parts {
		start := int(parts[i])
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if start < 0 || end > len(points) || end-start < 4 {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range points[start:end] {
			ring = append(ring, project(pt.X, pt.Y))
		}
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	return mp
}

// CenterReader loads the populated center (CCPP) point layer.
// It implements pipeline.CenterSource.
type CenterReader struct {
	file    string
	dirs    []string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCenterReader creates a reader for file looked up in dirs.
func NewCenterReader(file string, dirs []string, logger *slog.Logger, metrics *observability.Metrics) *CenterReader {
	return &CenterReader{file: file, dirs: dirs, logger: logger, metrics: metrics}
}

// LoadCenters reads every populated center point with its attributes.
// Centers with an empty department are placed later by the district join.
func (c *CenterReader) LoadCenters(ctx context.Context) ([]domain.PopulatedCenter, error) {
	path, err := datafile.ResolveShapefile(c.file, c.dirs)
	if err != nil {
		return nil, fmt.Errorf("resolve ccpp layer: %w", err)
	}
	l, err := openLayer(path)
	if err != nil {
		return nil, err
	}
	defer l.close()

	nameField, err := l.requireField(CenterNameFields)
	if err != nil {
		return nil, err
	}
	deptField := l.field(CenterDepartmentFields)
	codeField := l.field(CenterCodeFields)
	project := projectorFor(l.r.BBox())

	var out []domain.PopulatedCenter
	skipped := 0
	for l.r.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, shape := l.r.Shape()
		pt, ok := toPoint(shape, project)
		if !ok || !domain.InPeru(pt) {
			skipped++
			continue
		}
		out = append(out, domain.PopulatedCenter{
			Code:       l.attr(row, codeField),
			Name:       l.attr(row, nameField),
			Department: domain.NormalizeName(l.attr(row, deptField)),
			Point:      pt,
		})
	}
	if err := l.r.Err(); err != nil {
		return nil, fmt.Errorf("read ccpp layer %s: %w", path, err)
	}

	c.metrics.RowsRead.WithLabelValues("ccpp").Add(float64(len(out)))
	c.logger.Info("ccpp layer loaded",
		"path", path,
		"centers", len(out),
		"skipped", skipped,
		"has_department", deptField >= 0,
	)
	return out, nil
}

func toPoint(s shp.Shape, project projector) (orb.Point, bool) {
	switch p := s.(type) {
	case *shp.Point:
		return project(p.X, p.Y), true
	case *shp.PointZ:
		return project(p.X, p.Y), true
	case *shp.PointM:
		return project(p.X, p.Y), true
	case *shp.MultiPoint:
		if len(p.Points) == 0 {
			return orb.Point{}, false
		}
		return project(p.Points[0].X, p.Points[0].Y), true
	default:
		return orb.Point{}, false
	}
}

// Attributes opens a layer and returns its attribute names and record count.
func Attributes(file string, dirs []string) (path string, fields []string, records int, err error) {
	path, err = datafile.ResolveShapefile(file, dirs)
	if err != nil {
		return "", nil, 0, err
	}
	l, err := openLayer(path)
	if err != nil {
		return "", nil, 0, err
	}
	defer l.close()
	return path, l.fieldNames(), int(l.r.AttributeCount()), nil
}
