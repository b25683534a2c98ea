package runtime

import (
	"sync"
	"time"

	"github.com/asynkron/architerm/internal/core/transcript"
)

// Metrics collects session counters for monitoring and tests.
type Metrics interface {
	// RecordConnect records a successful connection.
	RecordConnect()
	// RecordDisconnect records a lost connection or a failed dial.
	RecordDisconnect()
	// RecordInbound records an accepted inbound message.
	RecordInbound(display transcript.DisplayMode)
	// RecordDropped records an inbound frame that was discarded.
	RecordDropped(reason string)
	// RecordOutbound records an outbound message: sent, failed, or dropped
	// because no connection was available.
	RecordOutbound(outcome OutboundOutcome)
	// GetSnapshot returns the current metrics snapshot.
	GetSnapshot() MetricsSnapshot
	// Reset clears all metrics (useful for testing).
	Reset()
}

// OutboundOutcome classifies what happened to a submitted message.
type OutboundOutcome string

const (
	OutboundSent    OutboundOutcome = "sent"
	OutboundFailed  OutboundOutcome = "failed"
	OutboundDropped OutboundOutcome = "dropped"
)

// MetricsSnapshot contains a point-in-time view of collected metrics.
type MetricsSnapshot struct {
	Connects      int64
	Disconnects   int64
	Inbound       map[string]int64 // display mode -> count
	Dropped       map[string]int64 // reason -> count
	Outbound      map[OutboundOutcome]int64
	LastConnect   time.Time
	LastInboundAt time.Time
}

// NoOpMetrics is a metrics collector that discards all metrics.
type NoOpMetrics struct{}

func (n *NoOpMetrics) RecordConnect()                         {}
func (n *NoOpMetrics) RecordDisconnect()                      {}
func (n *NoOpMetrics) RecordInbound(_ transcript.DisplayMode) {}
func (n *NoOpMetrics) RecordDropped(_ string)                 {}
func (n *NoOpMetrics) RecordOutbound(_ OutboundOutcome)       {}
func (n *NoOpMetrics) GetSnapshot() MetricsSnapshot           { return MetricsSnapshot{} }
func (n *NoOpMetrics) Reset()                                 {}

// InMemoryMetrics is a thread-safe in-memory metrics collector.
type InMemoryMetrics struct {
	mu            sync.RWMutex
	connects      int64
	disconnects   int64
	inbound       map[string]int64
	dropped       map[string]int64
	outbound      map[OutboundOutcome]int64
	lastConnect   time.Time
	lastInboundAt time.Time
}

// NewInMemoryMetrics creates a new in-memory metrics collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	m := &InMemoryMetrics{}
	m.Reset()
	return m
}

func (m *InMemoryMetrics) RecordConnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	m.lastConnect = time.Now()
}

func (m *InMemoryMetrics) RecordDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
}

func (m *InMemoryMetrics) RecordInbound(display transcript.DisplayMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound[display.String()]++
	m.lastInboundAt = time.Now()
}

func (m *InMemoryMetrics) RecordDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *InMemoryMetrics) RecordOutbound(outcome OutboundOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbound[outcome]++
}

func (m *InMemoryMetrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		Connects:      m.connects,
		Disconnects:   m.disconnects,
		Inbound:       make(map[string]int64, len(m.inbound)),
		Dropped:       make(map[string]int64, len(m.dropped)),
		Outbound:      make(map[OutboundOutcome]int64, len(m.outbound)),
		LastConnect:   m.lastConnect,
		LastInboundAt: m.lastInboundAt,
	}
	for k, v := range m.inbound {
		snapshot.Inbound[k] = v
	}
	for k, v := range m.dropped {
		snapshot.Dropped[k] = v
	}
	for k, v := range m.outbound {
		snapshot.Outbound[k] = v
	}
	return snapshot
}

func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connects = 0
	m.disconnects = 0
	m.inbound = make(map[string]int64)
	m.dropped = make(map[string]int64)
	m.outbound = make(map[OutboundOutcome]int64)
	m.lastConnect = time.Time{}
	m.lastInboundAt = time.Time{}
}
