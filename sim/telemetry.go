package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// telemetryColumns is the CSV layout, one row per step. Booleans are written
// as 0/1 so the file loads cleanly into numeric analysis tools.
var telemetryColumns = []string{
	"Time_s", "Alt_km", "Lat_deg", "Lon_deg", "Vel_km_s", "Battery_SOC_%", "Battery_Temp_K",
	"Att_Err_deg", "RW_Momentum_Nms", "Angular_Rate_deg_s", "Eclipse", "Solar_W",
	"CPU_Temp_K", "Link_Active", "Range_km", "Elevation_deg", "Doppler_Hz",
	"VerifiedCmds", "Attack_Active",
}

type telemetryLog struct {
	f      *os.File
	w      *csv.Writer
	closed bool
}

// newTelemetryLog creates (or truncates) the CSV file and writes the header.
// An empty path discards every row, for callers that only want the in-memory
// history.
func newTelemetryLog(path string) (*telemetryLog, error) {
	if path == "" {
		return &telemetryLog{w: csv.NewWriter(io.Discard)}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry log: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(telemetryColumns); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing telemetry header: %w", err)
	}
	return &telemetryLog{f: f, w: w}, nil
}

func (l *telemetryLog) Write(rec StepRecord) error {
	return l.w.Write([]string{
		num(rec.TimeS),
		num(rec.AltitudeKm),
		num(rec.LatDeg),
		num(rec.LonDeg),
		num(rec.VelocityKmS),
		num(rec.BatterySOCPct),
		num(rec.BatteryTempK),
		num(rec.AttitudeErrDeg),
		num(rec.RWMomentumNms),
		num(rec.AngularRateDegS),
		flag(rec.InEclipse),
		num(rec.SolarGenW),
		num(rec.CPUTempK),
		flag(rec.LinkActive),
		num(rec.RangeKm),
		num(rec.ElevationDeg),
		num(rec.DopplerHz),
		strconv.Itoa(rec.VerifiedCmds),
		flag(rec.AttackActive),
	})
}

// Close flushes and closes the file. Safe to call more than once.
func (l *telemetryLog) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.w.Flush()
	ferr := l.w.Error()
	var cerr error
	if l.f != nil {
		cerr = l.f.Close()
	}
	if ferr != nil {
		return fmt.Errorf("flushing telemetry log: %w", ferr)
	}
	return cerr
}

// num formats a float at full round-trip precision.
func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
