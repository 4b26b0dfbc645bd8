// Package logging provides the structured-logging conventions shared by
// every engine component.
//
// Design principles:
//   - Logging is dependency-injected, never global.
//   - Each component scopes its own logger once, at construction time,
//     via slog.With("component", ...).
//   - If no logger is supplied, a discard logger is used so components
//     never need a nil check on the hot path.
//   - Verbosity is controlled at the handler the application injects,
//     not inside components: ComponentFilterHandler filters on the
//     component attribute Scoped attaches, with per-component levels
//     adjustable at runtime.
//
// Logging stays sparse on purpose: lifecycle boundaries (file open/close,
// step begin/end, flush, backend registration) are logged; per-record or
// per-chunk hot paths (storeChunk, loadChunk, dirty propagation, chunk
// intersection) never are.
package logging

import (
	"context"
	"log/slog"
	"maps"
	"sync/atomic"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger if non-nil, otherwise a discard logger. Standard
// pattern for optional *slog.Logger constructor parameters:
//
//	func New(logger *slog.Logger) *Thing {
//	    logger = logging.Scoped(logger, "thing")
//	    return &Thing{logger: logger}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// Scoped substitutes a discard logger for nil and tags every record the
// returned logger emits with component=name, plus any extra key/value
// pairs. Call once at construction time; never re-scope per call.
func Scoped(logger *slog.Logger, component string, extra ...any) *slog.Logger {
	args := append([]any{"component", component}, extra...)
	return Default(logger).With(args...)
}

// ComponentFilterHandler wraps an slog.Handler and filters records by
// per-component minimum levels, so verbosity can be raised for one
// component (a single driver instance, the series lifecycle, the
// streaming watcher) without drowning a run in everything else's
// debug output. Components never know about it: they log through
// whatever logger they were injected with, and the filter keys off the
// component attribute Scoped already attaches.
//
// Thread-safety: Handle reads the levels map through a lock-free
// atomic snapshot; SetLevel/ClearLevel are copy-on-write.
//
// Usage:
//
//	base := slog.NewTextHandler(os.Stderr, nil)
//	logger, filter := logging.New(base, slog.LevelInfo)
//	// hand logger to OpenSeries / jsonfile.New / ...
//	filter.SetLevel("jsonfile", slog.LevelDebug)
type ComponentFilterHandler struct {
	next         slog.Handler
	defaultLevel slog.Level

	// preAttrs holds attributes added via WithAttrs before any group
	// context; Handle checks them for "component".
	preAttrs []slog.Attr

	// levelSnapshot is shared (by pointer) with every handler derived
	// via WithAttrs/WithGroup, so a SetLevel reaches loggers that were
	// scoped before the call.
	levelSnapshot *atomic.Pointer[map[string]slog.Level]
}

// New wraps base in a ComponentFilterHandler at defaultLevel and
// returns the ready-to-inject logger alongside the filter itself, for
// runtime level control.
func New(base slog.Handler, defaultLevel slog.Level) (*slog.Logger, *ComponentFilterHandler) {
	filter := NewComponentFilterHandler(base, defaultLevel)
	return slog.New(filter), filter
}

// NewComponentFilterHandler creates a filter in front of next, with
// defaultLevel as the minimum for components that have no explicit
// level configured.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	snapshot := &atomic.Pointer[map[string]slog.Level]{}
	empty := make(map[string]slog.Level)
	snapshot.Store(&empty)
	return &ComponentFilterHandler{
		next:          next,
		defaultLevel:  defaultLevel,
		levelSnapshot: snapshot,
	}
}

// Enabled always reports true: the component attribute is only
// available in Handle, so that is where filtering happens. The wrapped
// handler's own Enabled is still consulted before delivery.
func (h *ComponentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle drops the record if it is below the minimum level configured
// for its component, then defers to the wrapped handler.
func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	levels := *h.levelSnapshot.Load()

	minLevel := h.defaultLevel
	if component := h.findComponent(r); component != "" {
		if level, ok := levels[component]; ok {
			minLevel = level
		}
	}
	if r.Level < minLevel {
		return nil
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// findComponent extracts the "component" attribute from preAttrs or the
// record itself; "" if absent.
func (h *ComponentFilterHandler) findComponent(r slog.Record) string {
	for _, attr := range h.preAttrs {
		if attr.Key == "component" {
			if s, ok := attr.Value.Resolve().Any().(string); ok {
				return s
			}
		}
	}
	var component string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			if s, ok := a.Value.Resolve().Any().(string); ok {
				component = s
				return false
			}
		}
		return true
	})
	return component
}

// WithAttrs returns a derived handler; a "component" attribute in attrs
// participates in filtering. The level map is shared with the parent.
func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	newPreAttrs := make([]slog.Attr, len(h.preAttrs), len(h.preAttrs)+len(attrs))
	copy(newPreAttrs, h.preAttrs)
	newPreAttrs = append(newPreAttrs, attrs...)
	return &ComponentFilterHandler{
		next:          h.next.WithAttrs(attrs),
		defaultLevel:  h.defaultLevel,
		preAttrs:      newPreAttrs,
		levelSnapshot: h.levelSnapshot,
	}
}

// WithGroup returns a derived handler sharing the same level map.
func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ComponentFilterHandler{
		next:          h.next.WithGroup(name),
		defaultLevel:  h.defaultLevel,
		preAttrs:      h.preAttrs,
		levelSnapshot: h.levelSnapshot,
	}
}

// SetLevel sets the minimum level for one component at runtime.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	oldLevels := *h.levelSnapshot.Load()
	newLevels := make(map[string]slog.Level, len(oldLevels)+1)
	maps.Copy(newLevels, oldLevels)
	newLevels[component] = level
	h.levelSnapshot.Store(&newLevels)
}

// ClearLevel removes a component's explicit level, reverting it to the
// default.
func (h *ComponentFilterHandler) ClearLevel(component string) {
	oldLevels := *h.levelSnapshot.Load()
	if _, ok := oldLevels[component]; !ok {
		return
	}
	newLevels := make(map[string]slog.Level, len(oldLevels))
	for k, v := range oldLevels {
		if k != component {
			newLevels[k] = v
		}
	}
	h.levelSnapshot.Store(&newLevels)
}

// Level reports the effective minimum level for component.
func (h *ComponentFilterHandler) Level(component string) slog.Level {
	levels := *h.levelSnapshot.Load()
	if level, ok := levels[component]; ok {
		return level
	}
	return h.defaultLevel
}

// DefaultLevel reports the minimum level for components without an
// explicit configuration.
func (h *ComponentFilterHandler) DefaultLevel() slog.Level {
	return h.defaultLevel
}
