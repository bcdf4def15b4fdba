package telemetry

import (
	"sync/atomic"
	"time"
)

// Counters aggregates per-room metrics. All fields are atomics so the
// room goroutine records without coordination and HTTP readers snapshot
// without stopping it.
type Counters struct {
	bytesSent          atomic.Uint64
	messagesSent       atomic.Uint64
	messagesReceived   atomic.Uint64
	malformedDropped   atomic.Uint64
	violations         atomic.Uint64
	corrections        atomic.Uint64
	walnutsHidden      atomic.Uint64
	walnutsFound       atomic.Uint64
	ticks              atomic.Uint64
	tickDurationMicros atomic.Int64
	storageFailures    atomic.Uint64
}

// Snapshot is the JSON view served from the metrics endpoint and
// persisted with room state.
type Snapshot struct {
	BytesSent          uint64 `json:"bytesSent"`
	MessagesSent       uint64 `json:"messagesSent"`
	MessagesReceived   uint64 `json:"messagesReceived"`
	MalformedDropped   uint64 `json:"malformedDropped"`
	Violations         uint64 `json:"violations"`
	Corrections        uint64 `json:"corrections"`
	WalnutsHidden      uint64 `json:"walnutsHidden"`
	WalnutsFound       uint64 `json:"walnutsFound"`
	Ticks              uint64 `json:"ticks"`
	TickDurationMicros int64  `json:"tickDurationMicros"`
	StorageFailures    uint64 `json:"storageFailures"`
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) RecordBroadcast(bytes, messages int) {
	if bytes > 0 {
		c.bytesSent.Add(uint64(bytes))
	}
	if messages > 0 {
		c.messagesSent.Add(uint64(messages))
	}
}

func (c *Counters) RecordInbound()          { c.messagesReceived.Add(1) }
func (c *Counters) RecordMalformed()        { c.malformedDropped.Add(1) }
func (c *Counters) RecordCorrection()       { c.corrections.Add(1) }
func (c *Counters) RecordWalnutHidden()     { c.walnutsHidden.Add(1) }
func (c *Counters) RecordWalnutFound()      { c.walnutsFound.Add(1) }
func (c *Counters) RecordStorageFailure()   { c.storageFailures.Add(1) }
func (c *Counters) RecordViolations(n int) {
	if n > 0 {
		c.violations.Add(uint64(n))
	}
}

func (c *Counters) RecordTick(duration time.Duration) {
	c.ticks.Add(1)
	micros := duration.Microseconds()
	if micros < 0 {
		micros = 0
	}
	c.tickDurationMicros.Store(micros)
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		BytesSent:          c.bytesSent.Load(),
		MessagesSent:       c.messagesSent.Load(),
		MessagesReceived:   c.messagesReceived.Load(),
		MalformedDropped:   c.malformedDropped.Load(),
		Violations:         c.violations.Load(),
		Corrections:        c.corrections.Load(),
		WalnutsHidden:      c.walnutsHidden.Load(),
		WalnutsFound:       c.walnutsFound.Load(),
		Ticks:              c.ticks.Load(),
		TickDurationMicros: c.tickDurationMicros.Load(),
		StorageFailures:    c.storageFailures.Load(),
	}
}
