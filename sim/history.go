package sim

import (
	"github.com/scopefoundry/smallsat-simulator/core"
	"github.com/scopefoundry/smallsat-simulator/cyber"
	"github.com/scopefoundry/smallsat-simulator/model"
)

// StepRecord is everything the loop knows about one completed step. Altitude
// and battery SOC are the displayed values, so an active telemetry
// falsification shows up here exactly as it would on an operator console.
type StepRecord struct {
	Step  int
	TimeS float64

	AltitudeKm      float64
	LatDeg          float64
	LonDeg          float64
	VelocityKmS     float64
	BatterySOCPct   float64
	BatteryTempK    float64
	AttitudeErrDeg  float64
	RWMomentumNms   float64
	AngularRateDegS float64
	InEclipse       bool
	SolarGenW       float64
	CPUTempK        float64

	LinkActive   bool
	RangeKm      float64
	ElevationDeg float64
	DopplerHz    float64

	VerifiedCmds int
	AttackActive bool
	AttackKind   cyber.AttackKind
}

// History is the per-step record of a run, in step order.
type History []StepRecord

// Summary condenses a finished run into the headline mission numbers.
type Summary struct {
	DurationMin        float64
	TotalOrbits        float64
	AltitudeChangeKm   float64
	FinalAltitudeKm    float64
	FinalBatterySOCPct float64
	BatteryDegradPct   float64
	EclipseMin         float64
	GroundPasses       int
	CmdSuccessRatePct  float64
	MaxAttitudeErrDeg  float64
	MaxCPUTempK        float64
	AttackMin          float64
}

// summarize computes the mission summary from the run history and the final
// power state. Battery degradation is measured against the 80% charge the
// battery starts at, so a fully recharged battery reads negative.
func summarize(h History, dtSeconds, targetAltKm float64, sat model.SatelliteConfig, finalPower model.PowerState) Summary {
	if len(h) == 0 {
		return Summary{}
	}
	last := h[len(h)-1]

	var eclipseSteps, attackSteps, passes, verified int
	var maxAttErr, maxCPUTemp float64
	for i, rec := range h {
		if rec.InEclipse {
			eclipseSteps++
		}
		if rec.AttackActive {
			attackSteps++
		}
		if i > 0 && rec.LinkActive && !h[i-1].LinkActive {
			passes++
		}
		verified += rec.VerifiedCmds
		if rec.AttitudeErrDeg > maxAttErr {
			maxAttErr = rec.AttitudeErrDeg
		}
		if rec.CPUTempK > maxCPUTemp {
			maxCPUTemp = rec.CPUTempK
		}
	}

	perStep := len(cyber.AllCommandKinds())
	successRate := 100 * float64(verified) / float64(len(h)*perStep)

	return Summary{
		DurationMin:        last.TimeS / 60,
		TotalOrbits:        last.TimeS / core.OrbitalPeriod(model.EarthRadiusKm+targetAltKm),
		AltitudeChangeKm:   last.AltitudeKm - targetAltKm,
		FinalAltitudeKm:    last.AltitudeKm,
		FinalBatterySOCPct: last.BatterySOCPct,
		BatteryDegradPct:   (sat.BatteryCapacityWh*0.8 - finalPower.BatteryChargeWh) / sat.BatteryCapacityWh * 100,
		EclipseMin:         float64(eclipseSteps) * dtSeconds / 60,
		GroundPasses:       passes,
		CmdSuccessRatePct:  successRate,
		MaxAttitudeErrDeg:  maxAttErr,
		MaxCPUTempK:        maxCPUTemp,
		AttackMin:          float64(attackSteps) * dtSeconds / 60,
	}
}
