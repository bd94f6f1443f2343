package core

import "math"

// Atmosphere layer table: breakpoint altitudes in km with the reference
// density at each breakpoint in kg/m^3. Within a layer, density decays
// exponentially with a scale height fitted to the bounding breakpoints.
var (
	layerAltKm = []float64{
		0, 25, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120, 150,
		180, 200, 250, 300, 350, 400, 450, 500, 600, 700, 800, 900, 1000,
	}
	layerDensity = []float64{
		1.225, 3.899e-2, 1.774e-2, 3.972e-3, 1.057e-3, 3.206e-4,
		8.770e-5, 1.905e-5, 3.396e-6, 5.297e-7, 9.661e-8, 2.438e-8,
		2.076e-9, 5.194e-10, 2.541e-10, 6.073e-11, 1.916e-11, 7.014e-12,
		2.803e-12, 1.184e-12, 5.215e-13, 1.137e-13, 3.070e-14, 1.136e-14,
		5.759e-15, 3.561e-15,
	}
)

// AtmosphericDensity returns air density in kg/m^3 at the given altitude.
// Altitudes below the table clamp to sea-level density; altitudes above the
// last breakpoint hold the final tabulated value.
func AtmosphericDensity(altKm float64) float64 {
	if altKm < 0 {
		return layerDensity[0]
	}
	for i := 0; i < len(layerAltKm)-1; i++ {
		if layerAltKm[i] <= altKm && altKm < layerAltKm[i+1] {
			scaleHeight := (layerAltKm[i+1] - layerAltKm[i]) / math.Log(layerDensity[i]/layerDensity[i+1])
			return layerDensity[i] * math.Exp(-(altKm-layerAltKm[i])/scaleHeight)
		}
	}
	return layerDensity[len(layerDensity)-1]
}
