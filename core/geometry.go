package core

import (
	"math"

	"github.com/scopefoundry/smallsat-simulator/model"
)

// sunDirection is the fixed inertial sun vector used by the cylindrical
// shadow model.
var sunDirection = model.Vec3{X: 1}

// CheckEclipse reports whether the position sits inside Earth's shadow
// cylinder: on the anti-sun side and within one Earth radius of the axis.
func CheckEclipse(position model.Vec3) bool {
	along := position.Dot(sunDirection)
	radial := position.Sub(sunDirection.Scale(along))
	return along < 0 && radial.Norm() < model.EarthRadiusKm
}

// ECIToLatLonAlt converts an ECI position to geocentric latitude and
// longitude in degrees plus altitude in km, treating Earth as a sphere.
func ECIToLatLonAlt(position model.Vec3) (latDeg, lonDeg, altKm float64) {
	r := position.Norm()
	if r == 0 {
		return 0, 0, -model.EarthRadiusKm
	}
	latDeg = math.Asin(clamp(position.Z/r, -1, 1)) * 180 / math.Pi
	lonDeg = math.Atan2(position.Y, position.X) * 180 / math.Pi
	return latDeg, lonDeg, r - model.EarthRadiusKm
}

// OrbitalPeriod returns the circular-orbit period in seconds for the given
// orbit radius in km.
func OrbitalPeriod(radiusKm float64) float64 {
	return 2 * math.Pi * math.Sqrt(radiusKm*radiusKm*radiusKm/model.EarthMu)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
