package subsystems

import (
	"math"

	"golang.org/x/exp/rand"

	"github.com/scopefoundry/smallsat-simulator/model"
)

// Component names tracked by the thermal model.
const (
	ComponentCPU        = "cpu"
	ComponentBattery    = "battery"
	ComponentRadio      = "radio"
	ComponentSolarPanel = "solar_panel"
)

// componentOrder fixes the jitter draw order so runs reproduce under a
// fixed seed.
var componentOrder = []string{ComponentCPU, ComponentBattery, ComponentRadio, ComponentSolarPanel}

// Thermal models a lumped-mass thermal balance: electronics and absorbed
// sunlight heat the body, radiation to deep space cools it, and every
// component temperature random-walks a little around the shared trend.
type Thermal struct {
	sat   model.SatelliteConfig
	rng   *rand.Rand
	state model.ThermalState
}

// NewThermal starts all components at room temperature.
func NewThermal(sat model.SatelliteConfig, src rand.Source) *Thermal {
	temps := make(map[string]float64, len(componentOrder))
	for _, name := range componentOrder {
		temps[name] = 298.0
	}
	return &Thermal{
		sat: sat,
		rng: rand.New(src),
		state: model.ThermalState{
			ComponentTempsK: temps,
		},
	}
}

// State returns the most recent thermal state.
func (t *Thermal) State() model.ThermalState { return t.state }

// Update advances component temperatures by dtSeconds under the given
// electrical load.
func (t *Thermal) Update(consumptionW float64, inEclipse bool, dtSeconds float64) model.ThermalState {
	heatGen := consumptionW * 0.15
	if !inEclipse {
		heatGen += model.SolarFluxWm2 * t.sat.Absorptivity * t.sat.CrossSectionAreaM2 * 0.5
	}

	// Sum in fixed order: float addition order matters at the last ulp and
	// the average feeds back into next step's temperatures.
	var sum float64
	for _, name := range componentOrder {
		sum += t.state.ComponentTempsK[name]
	}
	avgTemp := sum / float64(len(componentOrder))

	dissipation := t.sat.Emissivity * model.StefanBoltzmann * t.sat.CrossSectionAreaM2 *
		(math.Pow(avgTemp, 4) - math.Pow(model.SpaceTempK, 4))

	tempChange := (heatGen - dissipation) * dtSeconds / t.sat.ThermalMassJPerK

	temps := make(map[string]float64, len(componentOrder))
	for _, name := range componentOrder {
		jitter := -2 + 4*t.rng.Float64()
		temps[name] = clamp(t.state.ComponentTempsK[name]+tempChange+jitter, 200, 350)
	}

	t.state = model.ThermalState{
		ComponentTempsK:  temps,
		HeatGenerationW:  heatGen,
		HeatDissipationW: dissipation,
	}
	return t.state
}
