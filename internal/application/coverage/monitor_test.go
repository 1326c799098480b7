package coverage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	values []float64
	idx    int
	err    error
}

func (s *fakeSource) Coverage(ctx context.Context) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	v := s.values[s.idx]
	if s.idx < len(s.values)-1 {
		s.idx++
	}
	return v, nil
}

func TestMonitor_UpdateStoresCurrentCoverage(t *testing.T) {
	src := &fakeSource{values: []float64{10}}
	m := New(src, t.TempDir(), 3, 0.05, 1.0)

	got := m.Update(context.Background())
	assert.Equal(t, 10.0, got)
	assert.Equal(t, 10.0, m.CurrentCoverage())
}

func TestMonitor_UpdateKeepsLastValueOnSourceError(t *testing.T) {
	src := &fakeSource{err: assertError("boom")}
	m := New(src, t.TempDir(), 3, 0.05, 1.0)
	m.currentCoverage = 42.0

	got := m.Update(context.Background())
	assert.Equal(t, 42.0, got)
}

func TestMonitor_CheckLowGrowthRate_FalseBeforeWindowFills(t *testing.T) {
	src := &fakeSource{values: []float64{1, 2}}
	m := New(src, t.TempDir(), 3, 0.05, 1.0)

	assert.False(t, m.CheckLowGrowthRate(context.Background()))
}

func TestMonitor_CheckLowGrowthRate_TrueOnPlateau(t *testing.T) {
	src := &fakeSource{values: []float64{10, 10, 10, 10, 10}}
	m := New(src, t.TempDir(), 3, 0.05, 1.0)

	var last bool
	for i := 0; i < 5; i++ {
		last = m.CheckLowGrowthRate(context.Background())
	}
	assert.True(t, last, "flat coverage across the window should report a growth stall")
}

func TestMonitor_CheckLowGrowthRate_FalseWhileGrowingFast(t *testing.T) {
	src := &fakeSource{values: []float64{1, 10, 50, 90, 99}}
	m := New(src, t.TempDir(), 3, 0.05, 1.0)

	var any bool
	for i := 0; i < 5; i++ {
		if m.CheckLowGrowthRate(context.Background()) {
			any = true
		}
	}
	assert.False(t, any, "sharply rising coverage should never be reported as stalled")
}

func TestMonitor_Clear_ResetsWindow(t *testing.T) {
	src := &fakeSource{values: []float64{10, 10, 10, 10}}
	m := New(src, t.TempDir(), 3, 0.05, 1.0)
	for i := 0; i < 4; i++ {
		m.CheckLowGrowthRate(context.Background())
	}
	m.Clear()
	require.Empty(t, m.grToCheck)
}

type assertError string

func (e assertError) Error() string { return string(e) }
