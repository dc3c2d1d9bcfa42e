package sample

import (
	"fmt"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
)

// District layer attribute names, as in the INEI 2023 layer.
var districtFields = []shp.Field{
	shp.StringField("UBIGEO", 6),
	shp.StringField("DISTRITO", 60),
	shp.StringField("PROVINCIA", 60),
	shp.StringField("DEPARTAMEN", 60),
}

// Populated center attribute names, as in the IGN 1:100 000 layer.
var centerFields = []shp.Field{
	shp.StringField("CODIGO", 10),
	shp.StringField("NOM_POBLAD", 80),
	shp.StringField("DEP", 40),
}

// WriteDistricts writes districts as a polygon shapefile. Outer rings are
// written clockwise and holes counter-clockwise.
func WriteDistricts(path string, districts []domain.District) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := w.SetFields(districtFields); err != nil {
		w.Close()
		return fmt.Errorf("set district fields: %w", err)
	}
	for _, d := range districts {
		poly := shp.Polygon(*shp.NewPolyLine(shapeParts(d.Geometry)))
		row := int(w.Write(&poly))
		for i, v := range []string{d.Ubigeo, d.Name, d.Province, d.Department} {
			if err := w.WriteAttribute(row, i, v); err != nil {
				w.Close()
				return fmt.Errorf("write district %s attribute %d: %w", d.Ubigeo, i, err)
			}
		}
	}
	return closeShapefile(w, path)
}

// WriteCenters writes populated centers as a point shapefile.
func WriteCenters(path string, centers []domain.PopulatedCenter) error {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := w.SetFields(centerFields); err != nil {
		w.Close()
		return fmt.Errorf("set center fields: %w", err)
	}
	for _, c := range centers {
		row := int(w.Write(&shp.Point{X: c.Point[0], Y: c.Point[1]}))
		for i, v := range []string{c.Code, c.Name, c.Department} {
			if err := w.WriteAttribute(row, i, v); err != nil {
				w.Close()
				return fmt.Errorf("write center %s attribute %d: %w", c.Name, i, err)
			}
		}
	}
	return closeShapefile(w, path)
}

// closeShapefile flushes w and moves the attribute table to <base>.dbf.
// go-shp v0.1.1 names it <base>dbf, without the dot.
func closeShapefile(w *shp.Writer, path string) error {
	w.Close()
	base := path
	if strings.HasSuffix(strings.ToLower(base), ".shp") {
		base = base[:len(base)-len(".shp")]
	}
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return fmt.Errorf("move attribute table for %s: %w", path, err)
	}
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		info, err := os.Stat(base + ext)
		if err != nil {
			return fmt.Errorf("shapefile %s: %w", path, err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("shapefile %s: empty %s", path, ext)
		}
	}
	return nil
}

func shapeParts(mp orb.MultiPolygon) [][]shp.Point {
	var parts [][]shp.Point
	for _, poly := range mp {
		for i, ring := range poly {
			want := orb.CW
			if i > 0 {
				want = orb.CCW
			}
			r := ring.Clone()
			if r.Orientation() != want {
				r.Reverse()
			}
			part := make([]shp.Point, len(r))
			for j, p := range r {
				part[j] = shp.Point{X: p[0], Y: p[1]}
			}
			parts = append(parts, part)
		}
	}
	return parts
}
