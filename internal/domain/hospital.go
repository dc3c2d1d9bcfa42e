package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Coordinate reference systems a facility position can arrive in.
const (
	CoordWGS84  = "wgs84"
	CoordUTM18S = "utm18s"
)

// Outcomes of assigning a facility to a district.
const (
	LocateSpatial   = "spatial"
	LocateUnmatched = "unmatched"
)

// Hospital is an operating IPRESS facility with a usable WGS-84 position.
type Hospital struct {
	ID             string `json:"id"`
	Institution    string `json:"institution,omitempty"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	Province       string `json:"province,omitempty"`
	District       string `json:"district,omitempty"`
	Category       string `json:"category,omitempty"`
	Status         string `json:"status"`
	Ubigeo         string `json:"ubigeo,omitempty"`
	Classification string `json:"classification,omitempty"`

	// North and East are kept verbatim from the spreadsheet.
	North string `json:"norte"`
	East  string `json:"este"`

	Point       orb.Point `json:"coordinates"`
	CoordSource string    `json:"coord_source"`

	// Filled by the district spatial join.
	DistrictUbigeo string `json:"district_ubigeo,omitempty"`
	DistrictName   string `json:"district_name,omitempty"`
	LocateSource   string `json:"locate_source,omitempty"`
}

// Lon returns the WGS-84 longitude.
func (h Hospital) Lon() float64 { return h.Point[0] }

// Lat returns the WGS-84 latitude.
func (h Hospital) Lat() float64 { return h.Point[1] }

// District is an administrative district polygon with its hospital count.
type District struct {
	Ubigeo         string           `json:"ubigeo"`
	Name           string           `json:"name"`
	NormalizedName string           `json:"name_norm"`
	Province       string           `json:"province,omitempty"`
	Department     string           `json:"department,omitempty"`
	Geometry       orb.MultiPolygon `json:"-"`
	Hospitals      int              `json:"n_hospitales"`
}

// PopulatedCenter is a CCPP point.
type PopulatedCenter struct {
	Code       string    `json:"code,omitempty"`
	Name       string    `json:"name"`
	Department string    `json:"department,omitempty"`
	Province   string    `json:"province,omitempty"`
	District   string    `json:"district,omitempty"`
	Point      orb.Point `json:"coordinates"`
}

// Summary holds the headline metrics of the data description tab.
type Summary struct {
	TotalHospitals int       `json:"total_hospitals"`
	Departments    int       `json:"departments"`
	Districts      int       `json:"districts"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// DepartmentCount is one bar of the per-department distribution.
type DepartmentCount struct {
	Department string `json:"department"`
	Hospitals  int    `json:"hospitals"`
}

// DistrictCount is the exported form of a joined district.
type DistrictCount struct {
	Ubigeo      string    `json:"ubigeo"`
	Name        string    `json:"name"`
	Department  string    `json:"department,omitempty"`
	Hospitals   int       `json:"n_hospitales"`
	GeneratedAt time.Time `json:"generated_at"`
}
