package ioengine

// FlushTarget selects where a Flush must land data before returning:
// the engine's own buffers (visible to a reader of the same process /
// stream step) or durable storage.
type FlushTarget string

const (
	FlushTargetBuffer FlushTarget = "buffer"
	FlushTargetDisk   FlushTarget = "disk"
)

// EngineConfig carries the per-backend engine keys of the user
// configuration (engine.type, engine.parameters, engine.usesteps,
// engine.flush_target, schema) after the frontend has validated their
// shape. Pointer fields distinguish "not configured" from an explicit
// value; Parameters is the opaque map passed through verbatim.
type EngineConfig struct {
	Type        string
	Parameters  map[string]any
	UseSteps    *bool
	FlushTarget *FlushTarget
	Schema      *int64
}

// EngineConfigurer is implemented by handlers that accept engine
// configuration. The frontend calls ConfigureEngine once, before the
// first task is enqueued; a handler rejects settings it cannot honor
// (e.g. usesteps on an engine without step semantics) with
// OperationUnsupportedError.
type EngineConfigurer interface {
	ConfigureEngine(cfg EngineConfig) error
}

// SuffixAdjuster is implemented by handlers that canonicalize the
// filename suffix of the resources they manage. AdjustFileSuffix
// returns the suffix actually used on the backend and, when the user's
// suffix had to be corrected, a non-empty warning for the frontend to
// log.
type SuffixAdjuster interface {
	AdjustFileSuffix(engineType, userSuffix string) (canonical string, warning string)
}
