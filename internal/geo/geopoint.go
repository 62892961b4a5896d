package geo

import (
	"fmt"
	"math"
	"strconv"
)

// Coordinate sentinels substituted when a DDmm.mmmm field is unparseable.
// They are outside the valid predicate, so a sentinel never flows into a
// persisted event as a real position.
const (
	InvalidLatitude  = 90.0
	InvalidLongitude = 180.0
)

// EarthRadiusKM is the mean earth radius used by the haversine formulas.
const EarthRadiusKM = 6371.0088

// GeoPoint is a WGS84 latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// InvalidGeoPoint is the canonical invalid position.
var InvalidGeoPoint = GeoPoint{}

// IsValid reports whether the point is a usable GPS position: inside the
// ±90/±180 envelope, not the 0/0 origin, and not a parse sentinel.
func (g GeoPoint) IsValid() bool {
	return IsValid(g.Latitude, g.Longitude)
}

// IsValid reports whether lat/lon form a usable GPS position.
func IsValid(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	if lat >= InvalidLatitude || lat <= -InvalidLatitude {
		return false
	}
	if lon >= InvalidLongitude || lon <= -InvalidLongitude {
		return false
	}
	// 0/0 is the "no fix" origin, not a real position
	if lat == 0.0 && lon == 0.0 {
		return false
	}
	return true
}

// DistanceKM returns the haversine great-circle distance to gp in kilometers.
func (g GeoPoint) DistanceKM(gp GeoPoint) float64 {
	lat1 := g.Latitude * math.Pi / 180.0
	lat2 := gp.Latitude * math.Pi / 180.0
	dLat := lat2 - lat1
	dLon := (gp.Longitude - g.Longitude) * math.Pi / 180.0
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2.0 * EarthRadiusKM * math.Asin(math.Sqrt(a))
}

// MetersTo returns the haversine distance to gp in meters.
func (g GeoPoint) MetersTo(gp GeoPoint) float64 {
	return g.DistanceKM(gp) * 1000.0
}

// HeadingTo returns the initial bearing from g to gp in degrees [0,360).
func (g GeoPoint) HeadingTo(gp GeoPoint) float64 {
	lat1 := g.Latitude * math.Pi / 180.0
	lat2 := gp.Latitude * math.Pi / 180.0
	dLon := (gp.Longitude - g.Longitude) * math.Pi / 180.0
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180.0 / math.Pi
	if deg < 0.0 {
		deg += 360.0
	}
	return deg
}

func (g GeoPoint) String() string {
	return fmt.Sprintf("%.5f/%.5f", g.Latitude, g.Longitude)
}

// ParseLatitude decodes a DDmm.mmmm latitude field with its hemisphere letter
// ("N"/"S"). An unparseable field yields the InvalidLatitude sentinel.
func ParseLatitude(s string, hemi string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0.0 {
		return InvalidLatitude
	}
	deg := math.Floor(v / 100.0)
	lat := deg + (v-deg*100.0)/60.0
	if lat > InvalidLatitude {
		return InvalidLatitude
	}
	if hemi == "S" || hemi == "s" {
		return -lat
	}
	return lat
}

// ParseLongitude decodes a DDDmm.mmmm longitude field with its hemisphere
// letter ("E"/"W"). An unparseable field yields the InvalidLongitude sentinel.
func ParseLongitude(s string, hemi string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0.0 {
		return InvalidLongitude
	}
	deg := math.Floor(v / 100.0)
	lon := deg + (v-deg*100.0)/60.0
	if lon > InvalidLongitude {
		return InvalidLongitude
	}
	if hemi == "W" || hemi == "w" {
		return -lon
	}
	return lon
}
