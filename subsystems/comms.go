package subsystems

import (
	"math"

	"github.com/scopefoundry/smallsat-simulator/model"
)

// Comms models the link to a single fixed ground station: visibility from
// elevation and slant range, received signal strength falling off linearly
// with range, and the Doppler shift of the downlink carrier.
type Comms struct {
	gs    model.GroundStationConfig
	gsPos model.Vec3
	state model.CommsState
}

// NewComms places the ground station on the spherical Earth surface at its
// configured latitude and longitude.
func NewComms(gs model.GroundStationConfig) *Comms {
	lat := gs.LatitudeDeg * math.Pi / 180
	lon := gs.LongitudeDeg * math.Pi / 180
	return &Comms{
		gs: gs,
		gsPos: model.Vec3{
			X: model.EarthRadiusKm * math.Cos(lat) * math.Cos(lon),
			Y: model.EarthRadiusKm * math.Cos(lat) * math.Sin(lon),
			Z: model.EarthRadiusKm * math.Sin(lat),
		},
	}
}

// State returns the most recent link state.
func (c *Comms) State() model.CommsState { return c.state }

// Update recomputes the link from the satellite's current position and
// velocity (km, km/s, ECI with the station held inertially fixed).
func (c *Comms) Update(position, velocity model.Vec3) model.CommsState {
	rangeVec := position.Sub(c.gsPos)
	rangeKm := rangeVec.Norm()
	if rangeKm < 1e-10 {
		c.state = model.CommsState{LinkActive: true, SignalStrength: 1, ElevationDeg: 90}
		return c.state
	}

	localVertical := c.gsPos.Scale(1 / model.EarthRadiusKm)
	cosZenith := clamp(rangeVec.Dot(localVertical)/rangeKm, -1, 1)
	elevationDeg := (math.Pi/2 - math.Acos(cosZenith)) * 180 / math.Pi

	visible := elevationDeg >= c.gs.MinElevationDeg && rangeKm <= c.gs.MaxRangeKm

	radialVelocity := velocity.Dot(rangeVec.Scale(1 / rangeKm))
	doppler := -c.gs.FrequencyHz * radialVelocity / model.SpeedOfLightKmS

	var signal float64
	if visible {
		signal = math.Max(0, 1.0-rangeKm/c.gs.MaxRangeKm)
	}

	c.state = model.CommsState{
		LinkActive:     visible,
		SignalStrength: signal,
		RangeKm:        rangeKm,
		DopplerHz:      doppler,
		ElevationDeg:   elevationDeg,
	}
	return c.state
}
