package domain

import (
	"github.com/paulmach/orb"
)

// DistrictLocator finds the district containing a point.
type DistrictLocator interface {
	Locate(p orb.Point) (District, bool)
}

// EnrichWithDistrict assigns the containing district to h. A nil locator
// leaves the hospital untouched; a miss marks it unmatched.
func EnrichWithDistrict(h Hospital, locator DistrictLocator) Hospital {
	if locator == nil {
		return h
	}
	d, ok := locator.Locate(h.Point)
	if !ok {
		h.DistrictUbigeo = ""
		h.DistrictName = ""
		h.LocateSource = LocateUnmatched
		return h
	}
	h.DistrictUbigeo = d.Ubigeo
	h.DistrictName = d.NormalizedName
	h.LocateSource = LocateSpatial
	return h
}
