package geo

import "math"

// earthRadiusM is the mean earth radius in meters.
const earthRadiusM = 6371000

// Point is a geographic coordinate (WGS 84), immutable by convention.
type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the great-circle distance between two points in
// meters, using the haversine formula.
func Distance(a, b Point) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
