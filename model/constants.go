package model

// Physical constants shared by the flight dynamics and subsystem models.
// Lengths are kilometres unless the name says otherwise.
const (
	// EarthRadiusKm is the mean Earth radius.
	EarthRadiusKm = 6371.0

	// EarthMu is Earth's standard gravitational parameter in km^3/s^2.
	EarthMu = 398600.4418

	// EarthJ2 is the dominant zonal harmonic of Earth's gravity field.
	EarthJ2 = 1.08263e-3

	// SolarFluxWm2 is the solar constant at 1 AU in W/m^2.
	SolarFluxWm2 = 1361.0

	// StefanBoltzmann is the radiation constant in W/(m^2 K^4).
	StefanBoltzmann = 5.67e-8

	// SpaceTempK is the deep-space background temperature radiated against.
	SpaceTempK = 3.0

	// SpeedOfLightKmS is the speed of light in km/s.
	SpeedOfLightKmS = 299792.458
)
