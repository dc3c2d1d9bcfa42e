package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHeader = []string{
	"Institución", "Código Único", "Nombre del establecimiento", "Clasificación", "Departamento",
	"Provincia", "Distrito", "UBIGEO", "Categoria", "Estado", "NORTE", "ESTE",
}

func testRow(name, status, north, east string) []string {
	return []string{
		"GOBIERNO REGIONAL", "", name, "HOSPITALES O CLINICAS DE ATENCION GENERAL", "Lima",
		"LIMA", "BREÑA", "150105", "III-1", status, north, east,
	}
}

func TestNewHeader(t *testing.T) {
	h := NewHeader(testHeader)

	assert.Equal(t, 0, h[ColInstitution])
	assert.Equal(t, 2, h[ColName])
	assert.Equal(t, 3, h[ColClassification])
	assert.Equal(t, 10, h[ColNorth])
	assert.Empty(t, h.Missing())
}

func TestNewHeader_TrimsAndFolds(t *testing.T) {
	h := NewHeader([]string{"  departamento ", "NOMBRE DEL  ESTABLECIMIENTO", "estado"})

	assert.True(t, h.Has(ColDepartment))
	assert.True(t, h.Has(ColName))
	assert.ElementsMatch(t, []string{ColNorth, ColEast}, h.Missing())
}

func TestNewHeader_LeadingByteOrderMark(t *testing.T) {
	cols := append([]string{"\uFEFFInstitución"}, testHeader[1:]...)
	h := NewHeader(cols)

	assert.Equal(t, 0, h[ColInstitution])
	assert.Empty(t, h.Missing())
}

func TestNewHeader_NameFallback(t *testing.T) {
	h := NewHeader([]string{"Nombre Establecimiento", "Estado"})
	assert.Equal(t, 0, h[ColName])
}

func TestParseHospitalRow(t *testing.T) {
	h := NewHeader(testHeader)
	hosp := ParseHospitalRow(h, testRow("HOSPITAL ARZOBISPO LOAYZA", " ACTIVO ", "-12.0494", "-77.0431"))

	assert.Equal(t, "GOBIERNO REGIONAL", hosp.Institution)
	assert.Equal(t, "HOSPITAL ARZOBISPO LOAYZA", hosp.Name)
	assert.Equal(t, "Lima", hosp.Department)
	assert.Equal(t, "BREÑA", hosp.District)
	assert.Equal(t, "ACTIVO", hosp.Status)
	assert.Equal(t, "-12.0494", hosp.North)
	assert.Equal(t, "-77.0431", hosp.East)
	assert.True(t, strings.HasPrefix(hosp.ID, "ipress-"))
}

func TestParseHospitalRow_ShortRow(t *testing.T) {
	h := NewHeader(testHeader)
	hosp := ParseHospitalRow(h, []string{"MINSA", "00001", "POSTA"})

	assert.Equal(t, "00001", hosp.ID)
	assert.Equal(t, "POSTA", hosp.Name)
	assert.Empty(t, hosp.North)
	assert.Empty(t, hosp.Status)
}

func TestFacilityID_Deterministic(t *testing.T) {
	h := NewHeader(testHeader)
	a := ParseHospitalRow(h, testRow("HOSPITAL A", "ACTIVO", "-12.05", "-77.04"))
	b := ParseHospitalRow(h, testRow("HOSPITAL A", "ACTIVO", "-12.05", "-77.04"))
	c := ParseHospitalRow(h, testRow("HOSPITAL B", "ACTIVO", "-12.05", "-77.04"))

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestFilterHospital(t *testing.T) {
	rules := FilterRules{Classification: DefaultClassification}

	tests := []struct {
		name       string
		hosp       Hospital
		rules      FilterRules
		want       RejectReason
		wantSource string
		wantLon    float64
		wantLat    float64
	}{
		{
			name:       "active degrees",
			hosp:       Hospital{Status: "ACTIVO", North: "-12.0494", East: "-77.0431"},
			rules:      rules,
			want:       RejectNone,
			wantSource: CoordWGS84,
			wantLon:    -77.0431,
			wantLat:    -12.0494,
		},
		{
			name:       "lower case status",
			hosp:       Hospital{Status: " activo", North: "-3.74", East: "-73.25"},
			rules:      rules,
			want:       RejectNone,
			wantSource: CoordWGS84,
			wantLon:    -73.25,
			wantLat:    -3.74,
		},
		{
			name:       "utm metres",
			hosp:       Hospital{Status: "ACTIVO", North: "8667487.897", East: "277617.453"},
			rules:      rules,
			want:       RejectNone,
			wantSource: CoordUTM18S,
			wantLon:    -77.0428,
			wantLat:    -12.0464,
		},
		{
			name:       "decimal comma",
			hosp:       Hospital{Status: "ACTIVO", North: "-12,05", East: "-77,04"},
			rules:      rules,
			want:       RejectNone,
			wantSource: CoordWGS84,
			wantLon:    -77.04,
			wantLat:    -12.05,
		},
		{name: "closed", hosp: Hospital{Status: "CERRADO", North: "-12", East: "-77"}, rules: rules, want: RejectInactive},
		{name: "blank status", hosp: Hospital{North: "-12", East: "-77"}, rules: rules, want: RejectInactive},
		{name: "missing north", hosp: Hospital{Status: "ACTIVO", East: "-77"}, rules: rules, want: RejectMissingCoords},
		{name: "non numeric", hosp: Hospital{Status: "ACTIVO", North: "abc", East: "-77"}, rules: rules, want: RejectMissingCoords},
		{name: "nan", hosp: Hospital{Status: "ACTIVO", North: "NaN", East: "-77"}, rules: rules, want: RejectMissingCoords},
		{name: "zero pair", hosp: Hospital{Status: "ACTIVO", North: "0", East: "0"}, rules: rules, want: RejectZeroCoords},
		{name: "outside peru", hosp: Hospital{Status: "ACTIVO", North: "40.7", East: "-74.0"}, rules: rules, want: RejectOutOfRange},
		{
			name:  "clinic rejected by keyword",
			hosp:  Hospital{Status: "ACTIVO", North: "-12", East: "-77", Classification: "PUESTOS DE SALUD"},
			rules: rules,
			want:  RejectClassification,
		},
		{
			name:       "keyword disabled",
			hosp:       Hospital{Status: "ACTIVO", North: "-12", East: "-77", Classification: "PUESTOS DE SALUD"},
			rules:      FilterRules{},
			want:       RejectNone,
			wantSource: CoordWGS84,
			wantLon:    -77,
			wantLat:    -12,
		},
		{
			name:       "no classification column",
			hosp:       Hospital{Status: "ACTIVO", North: "-12", East: "-77"},
			rules:      rules,
			want:       RejectNone,
			wantSource: CoordWGS84,
			wantLon:    -77,
			wantLat:    -12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := FilterHospital(tt.hosp, tt.rules)
			require.Equal(t, tt.want, reason)
			if tt.want != RejectNone {
				return
			}
			assert.Equal(t, tt.wantSource, got.CoordSource)
			assert.InDelta(t, tt.wantLon, got.Lon(), 1e-6)
			assert.InDelta(t, tt.wantLat, got.Lat(), 1e-6)
			assert.True(t, InPeru(got.Point))
		})
	}
}
