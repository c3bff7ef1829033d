package rehab

import (
	"math"
	"time"
)

const week = 7 * 24 * time.Hour

// trend is a least-squares line through session scores against weeks
// since the first session
type trend struct {
	Slope     float64 // points per week
	Intercept float64
	R2        float64
	N         int
	LastWeek  float64
}

func (t trend) at(weeks float64) float64 {
	return t.Intercept + t.Slope*weeks
}

// fitTrend fits attended sessions; sessions must be oldest first
func fitTrend(sessions []Session) trend {
	var xs, ys []float64
	var origin time.Time
	for _, s := range sessions {
		if !s.Attended {
			continue
		}
		if origin.IsZero() {
			origin = s.Date
		}
		xs = append(xs, float64(s.Date.Sub(origin))/float64(week))
		ys = append(ys, s.Score)
	}

	t := trend{N: len(xs)}
	switch len(xs) {
	case 0:
		return t
	case 1:
		t.Intercept = ys[0]
		return t
	}

	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	n := float64(len(xs))
	mx /= n
	my /= n

	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	t.LastWeek = xs[len(xs)-1]
	if sxx == 0 {
		t.Intercept = my
		return t
	}
	t.Slope = sxy / sxx
	t.Intercept = my - t.Slope*mx
	if syy == 0 {
		t.R2 = 1
	} else {
		t.R2 = (sxy * sxy) / (sxx * syy)
	}
	return t
}

// direction labels a slope in points per week
func (t trend) direction() string {
	switch {
	case t.N < 2:
		return "unknown"
	case t.Slope > 0.5:
		return "improving"
	case t.Slope < -0.5:
		return "declining"
	}
	return "stable"
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
