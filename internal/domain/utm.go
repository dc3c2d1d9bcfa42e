package domain

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// PeruBound is the envelope every retained facility must fall inside.
var PeruBound = orb.Bound{Min: orb.Point{-82, -19}, Max: orb.Point{-68, 1}}

// utm18S converts UTM zone 18 south (EPSG:32718) metres to WGS-84 lon/lat.
var utm18S = wgs84.UTM(18, false).To(wgs84.LonLat())

// UTM18SToWGS84 inverse-projects easting/northing metres in UTM zone 18 south
// to a WGS-84 lon/lat point.
func UTM18SToWGS84(easting, northing float64) orb.Point {
	lon, lat, _ := utm18S(easting, northing, 0)
	return orb.Point{lon, lat}
}

// ToWGS84 interprets an east/north pair. Values that already look like
// degrees are taken as lon/lat; anything else is treated as UTM 18S metres.
func ToWGS84(east, north float64) (orb.Point, string) {
	if math.Abs(east) <= 180 && math.Abs(north) <= 90 {
		return orb.Point{east, north}, CoordWGS84
	}
	return UTM18SToWGS84(east, north), CoordUTM18S
}

// InPeru reports whether p lies inside PeruBound.
func InPeru(p orb.Point) bool {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return false
	}
	return PeruBound.Contains(p)
}
