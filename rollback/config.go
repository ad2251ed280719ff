package rollback

// Config tunes the eight session-level knobs the controller exposes. Zero
// values are filled in by normalize with DefaultConfig's defaults, so
// callers can construct a partial Config and still get sane behavior.
type Config struct {
	// MaxRollbackFrames bounds how far back the controller will ever
	// resimulate. An input older than current-MaxRollbackFrames is
	// dropped as stale rather than applied.
	MaxRollbackFrames int

	// InputDelayFrames is the default local input delay applied to
	// peers added without an explicit per-peer override.
	InputDelayFrames int

	// MaxPredictionFrames bounds how far ahead of the current frame a
	// received input may be and still be applied; one further ahead stays
	// in the receive queue for a later tick. Ticking itself never stops.
	MaxPredictionFrames int

	// SyncTestInterval is how often, in frames, the controller
	// broadcasts a checksum to every peer. Zero disables sync testing.
	SyncTestInterval int

	// PingInterval is how often, in frames, the controller pings every
	// remote peer to sample round-trip latency. Zero disables ping
	// sampling.
	PingInterval int

	// FrameRate is the simulation tick rate, driving the fixed-timestep
	// accumulator in run.
	FrameRate int

	// SnapshotInterval is how often, in frames, the controller writes an
	// opportunistic snapshot (besides the frame-0 one Initialize takes). The
	// snapshot ring is sized against this via snapshot.Length.
	SnapshotInterval int

	// EvictionMargin is the extra slack, in frames, kept beyond
	// MaxRollbackFrames before an input ring / used-log entry is
	// evicted, absorbing jitter in when eviction actually runs.
	EvictionMargin int
}

// DefaultConfig returns reasonable defaults for every knob.
func DefaultConfig() Config {
	return Config{
		MaxRollbackFrames:   8,
		InputDelayFrames:    2,
		MaxPredictionFrames: 8,
		SyncTestInterval:    60,
		PingInterval:        120,
		FrameRate:           60,
		SnapshotInterval:    1,
		EvictionMargin:      4,
	}
}

// normalize fills zero fields with DefaultConfig's values. SyncTestInterval
// and PingInterval of exactly zero are left alone (they mean "disabled"),
// since that's a valid, deliberately chosen value rather than an unset one.
func (c Config) normalize() Config {
	d := DefaultConfig()

	if c.MaxRollbackFrames == 0 {
		c.MaxRollbackFrames = d.MaxRollbackFrames
	}
	if c.InputDelayFrames == 0 {
		c.InputDelayFrames = d.InputDelayFrames
	}
	if c.MaxPredictionFrames == 0 {
		c.MaxPredictionFrames = d.MaxPredictionFrames
	}
	if c.FrameRate == 0 {
		c.FrameRate = d.FrameRate
	}
	if c.SnapshotInterval == 0 {
		c.SnapshotInterval = d.SnapshotInterval
	}
	if c.EvictionMargin == 0 {
		c.EvictionMargin = d.EvictionMargin
	}

	return c
}
