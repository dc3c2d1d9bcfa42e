// Package sample builds a small deterministic IPRESS dataset and writes it in
// the same file formats as the real open-data downloads. It backs the genmock
// command and the adapter tests.
package sample

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
)

// Facility is one spreadsheet row, kept as text like the published registry.
type Facility struct {
	Code           string
	Institution    string
	Name           string
	Classification string
	Department     string
	Province       string
	District       string
	Ubigeo         string
	Category       string
	Status         string
	North          string
	East           string
}

// Cells returns the row in WorkbookHeader order.
func (f Facility) Cells() []string {
	return []string{
		f.Institution, f.Code, f.Name, f.Classification, f.Department,
		f.Province, f.District, f.Ubigeo, f.Category, f.Status, f.North, f.East,
	}
}

// WorkbookHeader is the IPRESS column layout written by WriteWorkbook.
var WorkbookHeader = []string{
	"Institución", "Código Único", "Nombre del establecimiento", "Clasificación", "Departamento",
	"Provincia", "Distrito", "UBIGEO", "Categoria", "Estado", "NORTE", "ESTE",
}

// Dataset is a complete set of inputs.
type Dataset struct {
	Facilities []Facility
	Districts  []domain.District
	Centers    []domain.PopulatedCenter
}

type department struct {
	name   string
	code   string
	prov   string
	bound  orb.Bound
	labels [4]string
}

var departments = []department{
	{
		name: "LIMA", code: "1501", prov: "LIMA",
		bound:  orb.Bound{Min: orb.Point{-77.5, -12.5}, Max: orb.Point{-76.5, -11.5}},
		labels: [4]string{"LIMA", "BREÑA", "ANCÓN", "ATE"},
	},
	{
		name: "LORETO", code: "1601", prov: "MAYNAS",
		bound:  orb.Bound{Min: orb.Point{-74, -4}, Max: orb.Point{-73, -3}},
		labels: [4]string{"IQUITOS", "PUNCHANA", "BELÉN", "NAPO"},
	},
	{
		name: "CUSCO", code: "0801", prov: "CUSCO",
		bound:  orb.Bound{Min: orb.Point{-72.5, -14}, Max: orb.Point{-71.5, -13}},
		labels: [4]string{"CUSCO", "SANTIAGO", "WANCHAQ", "SAN SEBASTIÁN"},
	},
}

// New returns the sample dataset. Each department is split into four
// districts. Nine facilities pass the retention rules and five districts have
// no hospital.
func New() Dataset {
	var ds Dataset
	for _, d := range departments {
		ds.Districts = append(ds.Districts, quarters(d)...)
	}

	add := func(code, name, class, dept, dist, ubigeo, status, north, east string) {
		ds.Facilities = append(ds.Facilities, Facility{
			Code: code, Institution: "MINSA", Name: name, Classification: class,
			Department: dept, Province: provinceOf(dept), District: dist, Ubigeo: ubigeo,
			Category: "II-2", Status: status, North: north, East: east,
		})
	}
	const hospital = "HOSPITALES O CLINICAS DE ATENCION GENERAL"

	add("00001", "HOSPITAL NACIONAL ARZOBISPO LOAYZA", hospital, "LIMA", "LIMA", "150101", "ACTIVO", "-12.25", "-77.25")
	add("00002", "HOSPITAL NACIONAL DOS DE MAYO", hospital, "LIMA", "LIMA", "150101", "ACTIVO", "-12.2", "-77.3")
	add("00003", "HOSPITAL SANTA ROSA", hospital, "LIMA", "BREÑA", "150102", "ACTIVO", "-12.3", "-76.8")
	add("00004", "HOSPITAL DE EMERGENCIAS", hospital, "LIMA", "ANCÓN", "150103", "ACTIVO", "-11.8", "-77.2")
	// UTM 18S position inside the LIMA district.
	add("00005", "HOSPITAL MARIA AUXILIADORA", hospital, "LIMA", "LIMA", "150101", "ACTIVO", "8628228.08", "260815.19")
	add("00006", "HOSPITAL CERRADO", hospital, "LIMA", "ATE", "150104", "CERRADO", "-11.7", "-76.7")
	add("00007", "PUESTO DE SALUD MIRAFLORES", "PUESTOS DE SALUD O POSTAS DE SALUD", "LIMA", "ATE", "150104", "ACTIVO", "-11.7", "-76.7")
	add("00008", "HOSPITAL SIN COORDENADAS", hospital, "LIMA", "ATE", "150104", "ACTIVO", "", "")
	add("00009", "HOSPITAL EN CERO", hospital, "LIMA", "ATE", "150104", "ACTIVO", "0", "0")
	add("00010", "HOSPITAL REGIONAL DE LORETO", hospital, "LORETO", "IQUITOS", "160101", "ACTIVO", "-3.75", "-73.75")
	add("00011", "HOSPITAL IQUITOS CESAR GARAYAR", hospital, "LORETO", "PUNCHANA", "160102", "ACTIVO", "-3.8", "-73.3")
	add("00012", "HOSPITAL ANTONIO LORENA", hospital, "CUSCO", "CUSCO", "080101", "ACTIVO", "-13.75", "-72.25")
	add("00013", "HOSPITAL REGIONAL DEL CUSCO", hospital, "CUSCO", "SANTIAGO", "080102", "ACTIVO", "-13.7", "-71.7")
	add("00014", "HOSPITAL FUERA DEL PAIS", hospital, "LIMA", "LIMA", "150101", "ACTIVO", "40.7", "-74.0")

	ds.Centers = []domain.PopulatedCenter{
		{Code: "1501010001", Name: "LIMA", Department: "LIMA", Point: orb.Point{-77.25, -12.24}},
		{Code: "1501020001", Name: "PUEBLO LIBRE", Department: "LIMA", Point: orb.Point{-76.85, -12.3}},
		{Code: "1501040001", Name: "HUAYCAN ALTO", Department: "LIMA", Point: orb.Point{-76.55, -11.55}},
		{Code: "1601010001", Name: "IQUITOS", Department: "LORETO", Point: orb.Point{-73.74, -3.76}},
		{Code: "1601040001", Name: "SANTA CLOTILDE", Department: "LORETO", Point: orb.Point{-73.05, -3.05}},
		{Code: "0801010001", Name: "CUSCO", Department: "CUSCO", Point: orb.Point{-72.24, -13.74}},
		{Code: "0801040001", Name: "SAN SEBASTIAN", Department: "CUSCO", Point: orb.Point{-71.6, -13.1}},
	}
	return ds
}

func provinceOf(dept string) string {
	for _, d := range departments {
		if d.name == dept {
			return d.prov
		}
	}
	return ""
}

// quarters splits a department bound into four districts: south-west,
// south-east, north-west, north-east.
func quarters(d department) []domain.District {
	mid := d.bound.Center()
	boxes := []orb.Bound{
		{Min: d.bound.Min, Max: mid},
		{Min: orb.Point{mid[0], d.bound.Min[1]}, Max: orb.Point{d.bound.Max[0], mid[1]}},
		{Min: orb.Point{d.bound.Min[0], mid[1]}, Max: orb.Point{mid[0], d.bound.Max[1]}},
		{Min: mid, Max: d.bound.Max},
	}
	out := make([]domain.District, len(boxes))
	for i, b := range boxes {
		out[i] = domain.District{
			Ubigeo:         fmt.Sprintf("%s%02d", d.code, i+1),
			Name:           d.labels[i],
			NormalizedName: domain.NormalizeName(d.labels[i]),
			Province:       d.prov,
			Department:     d.name,
			Geometry:       orb.MultiPolygon{b.ToPolygon()},
		}
	}
	return out
}

// Hospitals returns the facilities that pass the default retention rules, as
// the spreadsheet reader would.
func (ds Dataset) Hospitals() []domain.Hospital {
	header := domain.NewHeader(WorkbookHeader)
	rules := domain.FilterRules{Classification: domain.DefaultClassification}
	var out []domain.Hospital
	for _, f := range ds.Facilities {
		h, reason := domain.FilterHospital(domain.ParseHospitalRow(header, f.Cells()), rules)
		if reason == domain.RejectNone {
			out = append(out, h)
		}
	}
	return out
}
