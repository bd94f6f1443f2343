package sim

import (
	"fmt"
	"strings"

	"github.com/scopefoundry/smallsat-simulator/model"
)

// SVG plot constants
const (
	plotWidth       = 720
	plotMapHeight   = 360
	plotStripHeight = 90
	plotMargin      = 40
	plotGap         = 24
	plotHeight      = plotMapHeight + plotStripHeight + plotGap + 2*plotMargin

	trackStride      = 5 // plot every Nth step
	trackColor       = "royalblue"
	attackColor      = "crimson"
	gridColor        = "dimgray"
	stationColor     = "seagreen"
	titleFontSize    = 13
	axisFontSize     = 10
	trackStrokeWidth = "1.5"
	gridStrokeWidth  = "0.5"
)

// lonLatToXY maps geodetic coordinates onto the equirectangular map area.
func lonLatToXY(lonDeg, latDeg float64) (x, y float64) {
	innerW := float64(plotWidth - 2*plotMargin)
	innerH := float64(plotMapHeight)
	x = plotMargin + (lonDeg+180)/360*innerW
	y = plotMargin + (90-latDeg)/180*innerH
	return
}

// RenderSVG draws the run as an SVG: the ground track on an equirectangular
// map with the ground station marked, and an altitude strip underneath.
// Track segments turn red while an attack window is active.
func (h History) RenderSVG(gs model.GroundStationConfig) string {
	if len(h) < 2 {
		return fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg" style="background-color:white;"><rect width="100%%" height="100%%" fill="white"/><text x="50" y="50" fill="black">Not enough steps for a mission plot.</text></svg>`, plotWidth, plotHeight)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg" style="background-color:white;">`, plotWidth, plotHeight))
	b.WriteString(`<rect width="100%" height="100%" fill="white"/>`)

	b.WriteString(fmt.Sprintf(`<text x="%d" y="%d" fill="black" font-size="%d" font-weight="bold">Ground Track</text>`, plotMargin, plotMargin-10, titleFontSize))

	// Map frame and graticule
	b.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="%d" height="%d" stroke="black" stroke-width="1" fill="none"/>`, plotMargin, plotMargin, plotWidth-2*plotMargin, plotMapHeight))
	for lon := -120.0; lon <= 120; lon += 60 {
		x, _ := lonLatToXY(lon, 0)
		b.WriteString(fmt.Sprintf(`<line x1="%f" y1="%d" x2="%f" y2="%d" stroke="%s" stroke-width="%s" stroke-dasharray="4,4"/>`, x, plotMargin, x, plotMargin+plotMapHeight, gridColor, gridStrokeWidth))
		b.WriteString(fmt.Sprintf(`<text x="%f" y="%d" fill="%s" font-size="%d" text-anchor="middle">%.0f°</text>`, x, plotMargin+plotMapHeight+12, gridColor, axisFontSize, lon))
	}
	for lat := -60.0; lat <= 60; lat += 30 {
		_, y := lonLatToXY(0, lat)
		b.WriteString(fmt.Sprintf(`<line x1="%d" y1="%f" x2="%d" y2="%f" stroke="%s" stroke-width="%s" stroke-dasharray="4,4"/>`, plotMargin, y, plotWidth-plotMargin, y, gridColor, gridStrokeWidth))
		b.WriteString(fmt.Sprintf(`<text x="%d" y="%f" fill="%s" font-size="%d" text-anchor="end" dominant-baseline="middle">%.0f°</text>`, plotMargin-4, y, gridColor, axisFontSize, lat))
	}

	// Track segments, skipping jumps across the date line
	track := h.sampled(trackStride)
	for i := 0; i < len(track)-1; i++ {
		p1, p2 := track[i], track[i+1]
		if absf(p2.LonDeg-p1.LonDeg) > 180 {
			continue
		}
		x1, y1 := lonLatToXY(p1.LonDeg, p1.LatDeg)
		x2, y2 := lonLatToXY(p2.LonDeg, p2.LatDeg)
		color := trackColor
		if p1.AttackActive || p2.AttackActive {
			color = attackColor
		}
		b.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="%s" stroke-width="%s"/>`, x1, y1, x2, y2, color, trackStrokeWidth))
	}

	// Ground station marker
	sx, sy := lonLatToXY(gs.LongitudeDeg, gs.LatitudeDeg)
	b.WriteString(fmt.Sprintf(`<polygon points="%f,%f %f,%f %f,%f" fill="%s" stroke="black" stroke-width="0.5"/>`, sx, sy-6, sx-5, sy+4, sx+5, sy+4, stationColor))
	b.WriteString(fmt.Sprintf(`<text x="%f" y="%f" fill="%s" font-size="%d" text-anchor="middle">GS</text>`, sx, sy+16, stationColor, axisFontSize))

	h.renderAltitudeStrip(&b)

	b.WriteString(`</svg>`)
	return b.String()
}

// renderAltitudeStrip draws displayed altitude against time below the map.
func (h History) renderAltitudeStrip(b *strings.Builder) {
	top := plotMargin + plotMapHeight + plotGap
	innerW := float64(plotWidth - 2*plotMargin)
	innerH := float64(plotStripHeight)

	b.WriteString(fmt.Sprintf(`<text x="%d" y="%d" fill="black" font-size="%d" font-weight="bold">Altitude (km)</text>`, plotMargin, top-6, titleFontSize))
	b.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="%d" height="%d" stroke="black" stroke-width="1" fill="none"/>`, plotMargin, top, plotWidth-2*plotMargin, plotStripHeight))

	track := h.sampled(trackStride)
	minAlt, maxAlt := track[0].AltitudeKm, track[0].AltitudeKm
	for _, rec := range track {
		if rec.AltitudeKm < minAlt {
			minAlt = rec.AltitudeKm
		}
		if rec.AltitudeKm > maxAlt {
			maxAlt = rec.AltitudeKm
		}
	}
	span := maxAlt - minAlt
	if span < 1e-9 {
		span = 1
	}

	lastTime := h[len(h)-1].TimeS
	if lastTime <= 0 {
		lastTime = 1
	}
	toXY := func(rec StepRecord) (float64, float64) {
		x := plotMargin + rec.TimeS/lastTime*innerW
		y := float64(top) + (1-(rec.AltitudeKm-minAlt)/span)*innerH
		return x, y
	}

	for i := 0; i < len(track)-1; i++ {
		x1, y1 := toXY(track[i])
		x2, y2 := toXY(track[i+1])
		color := trackColor
		if track[i].AttackActive || track[i+1].AttackActive {
			color = attackColor
		}
		b.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="%s" stroke-width="%s"/>`, x1, y1, x2, y2, color, trackStrokeWidth))
	}

	b.WriteString(fmt.Sprintf(`<text x="%d" y="%d" fill="%s" font-size="%d" text-anchor="end" dominant-baseline="middle">%.1f</text>`, plotMargin-4, top, gridColor, axisFontSize, maxAlt))
	b.WriteString(fmt.Sprintf(`<text x="%d" y="%d" fill="%s" font-size="%d" text-anchor="end" dominant-baseline="middle">%.1f</text>`, plotMargin-4, top+plotStripHeight, gridColor, axisFontSize, minAlt))
}

// sampled returns every strideth record, always including the last one.
func (h History) sampled(stride int) History {
	if stride <= 1 || len(h) <= 2 {
		return h
	}
	out := make(History, 0, len(h)/stride+2)
	for i := 0; i < len(h); i += stride {
		out = append(out, h[i])
	}
	if out[len(out)-1].Step != h[len(h)-1].Step {
		out = append(out, h[len(h)-1])
	}
	return out
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
