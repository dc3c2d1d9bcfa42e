package domain

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestUTM18SToWGS84(t *testing.T) {
	tests := []struct {
		name    string
		east    float64
		north   float64
		wantLon float64
		wantLat float64
	}{
		{name: "origin of zone", east: 500000, north: 10000000, wantLon: -75, wantLat: 0},
		{name: "lima", east: 277617.4532, north: 8667487.8970, wantLon: -77.0428, wantLat: -12.0464},
		{name: "iquitos", east: 694659.6418, north: 9586008.2992, wantLon: -73.2472, wantLat: -3.7437},
		{name: "arequipa", east: 869904.9648, north: 8183781.3968, wantLon: -71.5375, wantLat: -16.3989},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := UTM18SToWGS84(tt.east, tt.north)
			// 1e-5 degrees is about a metre.
			assert.InDelta(t, tt.wantLon, p.Lon(), 1e-5)
			assert.InDelta(t, tt.wantLat, p.Lat(), 1e-5)
		})
	}
}

func TestToWGS84(t *testing.T) {
	p, src := ToWGS84(-77.03, -12.05)
	assert.Equal(t, CoordWGS84, src)
	assert.Equal(t, orb.Point{-77.03, -12.05}, p)

	_, src = ToWGS84(277617, 8667487)
	assert.Equal(t, CoordUTM18S, src)
}

func TestInPeru(t *testing.T) {
	assert.True(t, InPeru(orb.Point{-77, -12}))
	assert.True(t, InPeru(orb.Point{-68, 1}))
	assert.False(t, InPeru(orb.Point{-74, 40.7}))
	assert.False(t, InPeru(orb.Point{math.NaN(), -12}))
	assert.False(t, InPeru(orb.Point{math.Inf(-1), -12}))
}
