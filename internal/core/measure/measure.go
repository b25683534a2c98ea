// Package measure converts container and reference glyph geometry into the
// number of monospace columns a viewport can hold.
package measure

import (
	"math"
	"sync"
)

// DefaultAspectRatio is reported until the first successful measurement.
const DefaultAspectRatio = 1.0

// Box is the outer geometry of the measured container.
type Box struct {
	Width        float64
	PaddingLeft  float64
	PaddingRight float64
}

// ContentWidth is the width left once horizontal padding is removed.
func (b Box) ContentWidth() float64 {
	return b.Width - b.PaddingLeft - b.PaddingRight
}

// Glyph is the geometry of a single reference character in the active font.
type Glyph struct {
	Width    float64
	FontSize float64
}

// Metrics are the derived layout measurements.
type Metrics struct {
	CharWidth       int
	CharAspectRatio float64
}

// DefaultMetrics are the metrics in effect before anything was measured.
func DefaultMetrics() Metrics {
	return Metrics{CharWidth: 0, CharAspectRatio: DefaultAspectRatio}
}

// Compute derives metrics from a container and its reference glyph. It
// reports false when either side is not laid out yet. A laid out container
// whose padding leaves no content width measures as zero columns.
func Compute(container Box, glyph Glyph) (Metrics, bool) {
	if glyph.Width <= 0 || glyph.FontSize <= 0 || container.Width <= 0 {
		return Metrics{}, false
	}
	columns := 0
	if content := container.ContentWidth(); content > 0 {
		columns = int(math.Floor(content / glyph.Width))
	}
	return Metrics{
		CharWidth:       columns,
		CharAspectRatio: glyph.Width / glyph.FontSize,
	}, true
}

// Measurer keeps Metrics current while observing a container node and a
// glyph node. Any change on either node triggers a full recompute.
type Measurer struct {
	container *Node[Box]
	glyph     *Node[Glyph]

	mu        sync.Mutex
	metrics   Metrics
	listeners []func(Metrics)
	stops     []func()
}

// NewMeasurer starts observing container and glyph. An initial measurement
// is attempted immediately.
func NewMeasurer(container *Node[Box], glyph *Node[Glyph]) *Measurer {
	m := &Measurer{
		container: container,
		glyph:     glyph,
		metrics:   DefaultMetrics(),
	}
	m.stops = append(m.stops,
		container.Observe(func(Box) { m.recompute() }),
		glyph.Observe(func(Glyph) { m.recompute() }),
	)
	m.recompute()
	return m
}

// Metrics returns the most recent successful measurement.
func (m *Measurer) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

// OnChange registers fn to run whenever a recompute produces new metrics.
func (m *Measurer) OnChange(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Stop detaches the measurer from both nodes.
func (m *Measurer) Stop() {
	m.mu.Lock()
	stops := m.stops
	m.stops = nil
	m.listeners = nil
	m.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}

func (m *Measurer) recompute() {
	next, ok := Compute(m.container.Value(), m.glyph.Value())
	if !ok {
		return
	}

	m.mu.Lock()
	if next == m.metrics {
		m.mu.Unlock()
		return
	}
	m.metrics = next
	listeners := append([]func(Metrics){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}
