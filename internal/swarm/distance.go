package swarm

import "math"

// EarthRadiusKm is the mean Earth radius used by GreatCircleKm.
const EarthRadiusKm = 6371.0

const degToRad = math.Pi / 180

// GreatCircleKm returns the haversine distance in kilometres between two
// points given in decimal degrees. Identical points are exactly 0 apart.
func GreatCircleKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lon2 - lon1) * degToRad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// Rounding can push a marginally outside [0, 1] near antipodes.
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
