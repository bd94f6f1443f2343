// Package subsystems models the spacecraft bus subsystems surrounding the
// dynamics core: electrical power, component thermals, and the ground
// station communications link. Each subsystem owns its state and exposes a
// single Update called once per simulation step.
package subsystems

import (
	"github.com/scopefoundry/smallsat-simulator/model"
)

// Power models solar generation and battery charge. Generation derates
// linearly with battery temperature above 298 K, floored at half output.
type Power struct {
	sat   model.SatelliteConfig
	state model.PowerState
}

// NewPower starts the battery at 80% charge, nominal voltage, and room
// temperature.
func NewPower(sat model.SatelliteConfig) *Power {
	return &Power{
		sat: sat,
		state: model.PowerState{
			BatteryChargeWh:   sat.BatteryCapacityWh * 0.8,
			SolarGenerationW:  0,
			PowerConsumptionW: sat.BaselinePowerW,
			BatteryVoltage:    30.0,
			BatteryTempK:      298.0,
		},
	}
}

// State returns the most recent power state.
func (p *Power) State() model.PowerState { return p.state }

// Update advances the battery by dtHours at the given load. batteryTempK is
// the battery temperature reported by the thermal model for the previous
// step.
func (p *Power) Update(inEclipse bool, dtHours, consumptionW, batteryTempK float64) model.PowerState {
	var generation float64
	if !inEclipse {
		tempEff := 1.0 - 0.004*(batteryTempK-298)
		if tempEff < 0.5 {
			tempEff = 0.5
		}
		generation = model.SolarFluxWm2 * p.sat.SolarPanelAreaM2 * p.sat.SolarEfficiency * tempEff
	}

	charge := p.state.BatteryChargeWh + (generation-consumptionW)*dtHours
	charge = clamp(charge, 0, p.sat.BatteryCapacityWh)

	soc := charge / p.sat.BatteryCapacityWh
	voltage := 28.0 + 5.6*(soc-0.5)

	heatGen := consumptionW * 0.05
	temp := clamp(batteryTempK+(heatGen-10)*dtHours/100, 250, 320)

	p.state = model.PowerState{
		BatteryChargeWh:   charge,
		SolarGenerationW:  generation,
		PowerConsumptionW: consumptionW,
		BatteryVoltage:    voltage,
		BatteryTempK:      temp,
	}
	return p.state
}

// SOC returns the state of charge as a fraction of capacity.
func (p *Power) SOC() float64 {
	return p.state.BatteryChargeWh / p.sat.BatteryCapacityWh
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
