// Package coverage implements CoverageMonitor: an adaptive detector of
// diminishing returns on code coverage that drives the controller's
// EXPLORE/GUIDE/TEST_FUNCTION mode switch (spec.md §4.E).
package coverage

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Source samples the current coverage percentage in [0,100]. Concrete
// sources (method-log, bytecode-instrument) are infrastructure collaborators
// the controller is explicitly not responsible for (spec.md §1 "Out of
// scope").
type Source interface {
	Coverage(ctx context.Context) (float64, error)
}

const (
	defaultMinThreshold = 0.01
)

// Monitor samples a Source and maintains an adaptive growth-rate threshold,
// flagging when recent growth has stalled (spec.md §4.E).
type Monitor struct {
	mu sync.Mutex

	source Source

	windowSize    int
	minGrowthRate float64
	factor        float64

	currentCoverage   float64
	cvHistory         []float64
	adjustedThreshold float64
	growthRateSum     float64
	grToCheck         []float64

	filePath string
}

// New creates a Monitor over source, persisting a running log of sampled
// coverage values under saveDir/codecoverage.txt. wsize, minGrowthRate and
// factor tune the adaptive threshold (spec.md §4.E "Parameters").
func New(source Source, saveDir string, wsize int, minGrowthRate, factor float64) *Monitor {
	m := &Monitor{
		source:            source,
		windowSize:        wsize,
		minGrowthRate:     minGrowthRate,
		factor:            factor,
		currentCoverage:   0.00001,
		adjustedThreshold: minGrowthRate,
		filePath:          filepath.Join(saveDir, "codecoverage.txt"),
	}
	m.writeHeader()
	return m
}

func (m *Monitor) writeHeader() {
	f, err := os.Create(m.filePath)
	if err != nil {
		log.Error().Err(err).Msg("cannot create coverage log")
		return
	}
	defer f.Close()
	fmt.Fprintln(f, "code coverage")
	fmt.Fprintf(f, "start time: %s\n", time.Now().Format("2006-01-02 15:04:05"))
}

func (m *Monitor) saveToFile(line string) {
	f, err := os.OpenFile(m.filePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Error().Err(err).Msg("cannot append coverage log")
		return
	}
	defer f.Close()
	fmt.Fprintln(f, line)
}

// Update samples the source, stores the result as the current coverage and
// appends it, with a timestamp, to the coverage log.
func (m *Monitor) Update(ctx context.Context) float64 {
	v, err := m.source.Coverage(ctx)
	if err != nil {
		log.Error().Err(err).Msg("coverage source sample failed")
		m.mu.Lock()
		v = m.currentCoverage
		m.mu.Unlock()
	}
	m.mu.Lock()
	m.currentCoverage = v
	m.mu.Unlock()
	m.saveToFile(fmt.Sprintf("%s %f", time.Now().Format("2006-01-02 15:04:05"), v))
	return v
}

// update folds currentCV into the growth-rate history and re-adjusts the
// threshold via Tn = Tn-1 * exp(factor * (gn - G)), mirroring the original
// implementation's exponential adaptive threshold (spec.md §4.E).
func (m *Monitor) update(currentCV float64) {
	m.cvHistory = append(m.cvHistory, currentCV)
	n := len(m.cvHistory)
	var growthRate float64
	if n >= 2 {
		prev := m.cvHistory[n-2]
		growthRate = (currentCV - prev) / prev
		m.growthRateSum += math.Min(10.0, growthRate)
		m.grToCheck = append(m.grToCheck, growthRate)
		if len(m.grToCheck) > m.windowSize {
			m.grToCheck = m.grToCheck[1:]
		}
		log.Info().Int("window_len", len(m.grToCheck)).Float64("growth_rate", growthRate).Float64("sum", m.growthRateSum).Msg("coverage growth sampled")
	}
	if n >= m.windowSize {
		baseline := m.growthRateSum / float64(n-1)
		deltaG := growthRate - baseline
		adjusted := m.adjustedThreshold * math.Exp(m.factor*deltaG)
		m.adjustedThreshold = math.Max(adjusted, defaultMinThreshold)
		log.Info().Float64("baseline", baseline).Float64("delta_g", deltaG).Float64("adjusted_threshold", m.adjustedThreshold).Msg("coverage threshold adjusted")
	}
}

// CheckLowGrowthRate samples the source, folds it into the growth history,
// and reports whether every growth rate in the trailing window is at or
// below the adjusted threshold — i.e. coverage has plateaued (spec.md §4.E,
// edge case "Growth stall").
func (m *Monitor) CheckLowGrowthRate(ctx context.Context) bool {
	current := m.Update(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.update(current)

	if len(m.grToCheck) != m.windowSize {
		return false
	}
	for i := len(m.grToCheck) - 1; i >= 0; i-- {
		if m.grToCheck[i] > m.adjustedThreshold {
			return false
		}
	}
	return true
}

// Clear resets the trailing growth-rate window, used when the controller
// re-enters EXPLORE mode (spec.md §4.G step 6).
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grToCheck = m.grToCheck[:0]
}

// CurrentCoverage returns the last sampled percentage.
func (m *Monitor) CurrentCoverage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentCoverage
}
