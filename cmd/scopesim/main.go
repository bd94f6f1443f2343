package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scopefoundry/smallsat-simulator/core"
	"github.com/scopefoundry/smallsat-simulator/cyber"
	"github.com/scopefoundry/smallsat-simulator/internal/logging"
	"github.com/scopefoundry/smallsat-simulator/internal/observability"
	"github.com/scopefoundry/smallsat-simulator/model"
	"github.com/scopefoundry/smallsat-simulator/sim"
	"github.com/scopefoundry/smallsat-simulator/timectrl"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 2)

	summaryStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	attackStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5555"))

	sunStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	eclipseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8888FF"))

	linkUpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))

	linkDownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

func main() {
	configPath := flag.String("config", "", "YAML run configuration (built-in defaults when empty)")
	steps := flag.Int("steps", 0, "override the configured step count")
	seed := flag.Uint64("seed", 0, "override the master seed (0 keeps the configured value)")
	realtime := flag.Bool("realtime", false, "pace steps against the wall clock")
	logFile := flag.String("log", "", "override the telemetry CSV path")
	svgPath := flag.String("svg", "", "write a mission plot SVG after the run")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")
	statusEvery := flag.Int("status-every", 30, "print a status line every N steps (0 disables)")
	logLevel := flag.String("log-level", os.Getenv("LOG_LEVEL"), "log level: debug, info, warn, error")
	logFormat := flag.String("log-format", os.Getenv("LOG_FORMAT"), "log format: text or json")
	flag.Parse()

	log := logging.New(logging.Config{Level: *logLevel, Format: *logFormat, AddSource: true})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	cfg := sim.DefaultConfig()
	if *configPath != "" {
		cfg, err = sim.LoadConfig(*configPath)
		if err != nil {
			log.Error(ctx, "failed to load configuration", logging.String("path", *configPath), logging.String("error", err.Error()))
			os.Exit(1)
		}
	}
	if *steps > 0 {
		cfg.Simulation.Steps = *steps
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *logFile != "" {
		cfg.Simulation.LogFile = *logFile
	}
	if *realtime {
		cfg.Pacing = timectrl.RealTime
	}

	reg := prometheus.NewRegistry()
	flight, err := observability.NewSimCollector(reg)
	if err != nil {
		log.Error(ctx, "failed to initialise flight metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}
	pipeline, err := observability.NewCyberCollector(reg)
	if err != nil {
		log.Error(ctx, "failed to initialise pipeline metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, flight, log)

	s, err := sim.NewSimulator(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build simulator", logging.String("error", err.Error()))
		os.Exit(1)
	}
	s.AttachMetrics(flight, pipeline)

	fmt.Println(banner(cfg, s.Seed()))
	if *statusEvery > 0 {
		every := *statusEvery
		s.RegisterStepListener(func(rec sim.StepRecord) {
			if rec.Step%every == 0 {
				fmt.Println(statusLine(rec))
			}
		})
	}

	runErr := s.Run(ctx)
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		log.Warn(ctx, "run interrupted, reporting partial results")
	default:
		log.Error(ctx, "run failed", logging.String("error", runErr.Error()))
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(summaryBox(s.Summary()))
	fmt.Println(successStyle.Render("telemetry log: " + cfg.Simulation.LogFile))

	if *svgPath != "" {
		svg := s.History().RenderSVG(cfg.Ground)
		if err := os.WriteFile(*svgPath, []byte(svg), 0o644); err != nil {
			log.Error(ctx, "failed to write mission plot", logging.String("path", *svgPath), logging.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Println(successStyle.Render("mission plot:  " + *svgPath))
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func banner(cfg sim.Config, seed uint64) string {
	period := core.OrbitalPeriod(model.EarthRadiusKm+cfg.TargetAltitudeKm) / 60

	var b strings.Builder
	fmt.Fprintf(&b, "Target Altitude:   %.0f km\n", cfg.TargetAltitudeKm)
	fmt.Fprintf(&b, "Orbital Period:    %.1f min\n", period)
	fmt.Fprintf(&b, "Ground Station:    %.1f°N, %.1f°E\n", cfg.Ground.LatitudeDeg, cfg.Ground.LongitudeDeg)
	fmt.Fprintf(&b, "Command Auth:      %s\n", onOff(cfg.Defense.EnableCommandAuth))
	fmt.Fprintf(&b, "Steps:             %d x %.0fs (%s)\n", cfg.Simulation.Steps, cfg.Simulation.TimestepS, cfg.Pacing)
	fmt.Fprintf(&b, "Seed:              %d\n", seed)
	fmt.Fprintf(&b, "Cyber Scenarios:   %d", len(cfg.Scenarios))
	for _, sc := range cfg.Scenarios {
		if sc.Attack.Kind() == cyber.AttackNone {
			continue
		}
		fmt.Fprintf(&b, "\n  - %s at T+%.0fs for %.0fs (intensity %.2f)",
			sc.Attack.Kind(), sc.StartTime, sc.Duration, sc.Intensity)
	}

	return titleStyle.Render("SCOPE Smallsat Operations Simulator") + "\n" + boxStyle.Render(b.String())
}

func statusLine(rec sim.StepRecord) string {
	sun := sunStyle.Render("☀")
	if rec.InEclipse {
		sun = eclipseStyle.Render("☾")
	}
	link := linkDownStyle.Render("link-")
	if rec.LinkActive {
		link = linkUpStyle.Render("link+")
	}

	line := fmt.Sprintf("T+%6.0fs | Alt: %7.1f km | Bat: %5.1f%% | Att: %5.1f° | %s %s | Lat: %6.2f° Lon: %7.2f°",
		rec.TimeS, rec.AltitudeKm, rec.BatterySOCPct, rec.AttitudeErrDeg, sun, link, rec.LatDeg, rec.LonDeg)
	if rec.AttackActive {
		return attackStyle.Render("⚠ "+rec.AttackKind.String()) + " " + line
	}
	return "  " + line
}

func summaryBox(sum sim.Summary) string {
	rows := []struct {
		label string
		value string
	}{
		{"Mission Duration", fmt.Sprintf("%.1f min", sum.DurationMin)},
		{"Total Orbits", fmt.Sprintf("%.2f", sum.TotalOrbits)},
		{"Altitude Change", fmt.Sprintf("%+.1f km", sum.AltitudeChangeKm)},
		{"Final Altitude", fmt.Sprintf("%.1f km", sum.FinalAltitudeKm)},
		{"Final Battery SOC", fmt.Sprintf("%.1f%%", sum.FinalBatterySOCPct)},
		{"Battery Degradation", fmt.Sprintf("%.1f%%", sum.BatteryDegradPct)},
		{"Eclipse Time", fmt.Sprintf("%.1f min", sum.EclipseMin)},
		{"Ground Station Passes", fmt.Sprintf("%d", sum.GroundPasses)},
		{"Command Success Rate", fmt.Sprintf("%.1f%%", sum.CmdSuccessRatePct)},
		{"Max Attitude Error", fmt.Sprintf("%.1f°", sum.MaxAttitudeErrDeg)},
		{"Max CPU Temperature", fmt.Sprintf("%.1f K", sum.MaxCPUTempK)},
		{"Attack Time", fmt.Sprintf("%.1f min", sum.AttackMin)},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("MISSION SUMMARY"))
	for _, r := range rows {
		fmt.Fprintf(&b, "\n%s %s", labelStyle.Render(fmt.Sprintf("%-22s", r.label)), r.value)
	}
	return summaryStyle.Render(b.String())
}

func serveMetrics(addr string, flight *observability.SimCollector, log logging.Logger) *http.Server {
	if addr == "" || flight == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", flight.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
