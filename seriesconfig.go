package openpmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"openpmd/config"
	"openpmd/ioengine"
)

// SpanPolicy is the use_span_based_put policy of §6: whether
// GetBufferView may (auto), must (yes), or must never (no) offer
// span-based access to backend-managed buffers.
type SpanPolicy int

const (
	SpanPolicyAuto SpanPolicy = iota
	SpanPolicyYes
	SpanPolicyNo
)

func parseSpanPolicy(s string) (SpanPolicy, bool) {
	switch strings.ToLower(s) {
	case "auto":
		return SpanPolicyAuto, true
	case "yes":
		return SpanPolicyYes, true
	case "no":
		return SpanPolicyNo, true
	}
	return SpanPolicyAuto, false
}

func parseIterationEncoding(s string) (IterationEncoding, bool) {
	switch s {
	case "file_based":
		return EncodingFileBased, true
	case "group_based":
		return EncodingGroupBased, true
	case "variable_based":
		return EncodingVariableBased, true
	}
	return EncodingFileBased, false
}

// variableBasedMinSchema is the earliest on-disk schema version that
// can represent variable-based encoding.
const variableBasedMinSchema = 20210209

// recognizedBackends are the per-backend subtree keys legitimate at
// the top level of a user config.
var recognizedBackends = map[string]bool{
	"jsonfile":  true,
	"memdriver": true,
	"json":      true,
	"hdf5":      true,
	"adios2":    true,
}

// seriesConfig is the applied form of a user-supplied JSON/TOML
// configuration: the §6 keys this engine consumes, resolved against
// their environment-variable counterparts, plus the tracing shadow so
// Flush can warn about keys nothing consulted.
type seriesConfig struct {
	trace *config.TracingJSON

	deferParsing *bool
	encoding     *IterationEncoding
	backend      string

	engine     ioengine.EngineConfig
	operators  []ioengine.DatasetOperator
	spanPolicy SpanPolicy

	warned bool
}

// knobValue resolves one configuration knob against its environment
// variable, per §6: the config key wins when both are set, unless the
// override form of the environment variable is used. First match wins:
//
//  1. env  <VAR>_OVERRIDE
//  2. config key (cfg)
//  3. env  <VAR>
func knobValue(cfg func() (string, bool), envVar string) (string, bool) {
	if v, ok := os.LookupEnv(envVar + "_OVERRIDE"); ok {
		return v, true
	}
	if v, ok := cfg(); ok {
		return v, true
	}
	if v, ok := os.LookupEnv(envVar); ok {
		return v, true
	}
	return "", false
}

// stringAt returns a knobValue-compatible accessor for a string key on
// node. A nil node (the whole subtree absent from the user's config)
// reads as "not set", so environment variables still apply.
func stringAt(node *config.TracingJSON, key string) func() (string, bool) {
	return func() (string, bool) {
		if node == nil {
			return "", false
		}
		child, ok := node.Get(key)
		if !ok {
			return "", false
		}
		return child.String()
	}
}

// scalarString renders a decoded JSON scalar as the string form a
// driver's opaque parameter map carries.
func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// parseSeriesConfig decodes raw (inline JSON, inline TOML, or an
// @file reference) and consumes every key of the §6 table this engine
// understands, leaving everything else unread in the trace for the
// unused-key warning at flush. backendName scopes which per-backend
// subtree applies; subtrees for other backends are declared fully read
// and passed over without a warning, since a config is routinely
// shared between runs bound to different backends.
func parseSeriesConfig(raw, backendName string) (*seriesConfig, error) {
	trace, err := config.Parse(raw)
	if err != nil {
		return nil, err
	}
	sc := &seriesConfig{trace: trace, spanPolicy: SpanPolicyAuto}

	if v, ok := knobValue(func() (string, bool) {
		child, found := trace.Get("defer_iteration_parsing")
		if !found {
			return "", false
		}
		if b, isBool := child.Bool(); isBool {
			return strconv.FormatBool(b), true
		}
		return child.String()
	}, "OPENPMD_DEFER_ITERATION_PARSING"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, ioengine.NewBackendConfigSchema([]string{"defer_iteration_parsing"}, "not a boolean: %q", v)
		}
		sc.deferParsing = &b
	}

	if child, ok := trace.Get("iteration_encoding"); ok {
		s, isStr := child.String()
		enc, valid := parseIterationEncoding(s)
		if !isStr || !valid {
			return nil, ioengine.NewBackendConfigSchema([]string{"iteration_encoding"},
				"want one of file_based, group_based, variable_based")
		}
		sc.encoding = &enc
	}

	if v, ok := knobValue(stringAt(trace, "backend"), "OPENPMD_BACKEND"); ok {
		sc.backend = v
		if v != backendName {
			return nil, ioengine.NewBackendConfigSchema([]string{"backend"},
				"configured backend %q does not match the bound handler %q", v, backendName)
		}
	}

	sub, _ := trace.Get(backendName)
	if obj, ok := trace.Value().(map[string]any); ok {
		for key := range obj {
			if key == backendName || !recognizedBackends[key] {
				continue
			}
			// Another backend's subtree: not ours to consume or to warn
			// about, since one config is routinely shared between runs
			// bound to different backends.
			if node, found := trace.Get(key); found {
				node.DeclareFullyRead()
			}
		}
	}

	if err := sc.applyEngineKeys(sub); err != nil {
		return nil, err
	}
	if err := sc.applyDatasetKeys(sub); err != nil {
		return nil, err
	}

	if v, ok := knobValue(func() (string, bool) {
		if sub == nil {
			return "", false
		}
		child, found := sub.Get("schema")
		if !found {
			return "", false
		}
		if f, isNum := child.Float64(); isNum {
			return strconv.FormatInt(int64(f), 10), true
		}
		return child.String()
	}, "OPENPMD_SCHEMA"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, ioengine.NewBackendConfigSchema([]string{backendName, "schema"}, "not an integer: %q", v)
		}
		sc.engine.Schema = &n
	}

	if v, ok := knobValue(stringAt(sub, "use_span_based_put"), "OPENPMD_USE_SPAN_BASED_PUT"); ok {
		policy, valid := parseSpanPolicy(v)
		if !valid {
			return nil, ioengine.NewBackendConfigSchema([]string{backendName, "use_span_based_put"},
				"want one of auto, yes, no (got %q)", v)
		}
		sc.spanPolicy = policy
	}

	if sc.encoding != nil && *sc.encoding == EncodingVariableBased &&
		sc.engine.Schema != nil && *sc.engine.Schema < variableBasedMinSchema {
		return nil, ioengine.NewBackendConfigSchema([]string{backendName, "schema"},
			"variable_based encoding requires schema version >= %d (got %d)", variableBasedMinSchema, *sc.engine.Schema)
	}

	return sc, nil
}

func (sc *seriesConfig) applyEngineKeys(sub *config.TracingJSON) error {
	var engine *config.TracingJSON
	if sub != nil {
		engine, _ = sub.Get("engine")
	}
	if engine != nil {
		if child, ok := engine.Get("type"); ok {
			if s, isStr := child.String(); isStr {
				sc.engine.Type = s
			}
		}
		if child, ok := engine.Get("parameters"); ok {
			// Opaque subtree, passed through to the driver verbatim.
			child.DeclareFullyRead()
			if m, isMap := child.Value().(map[string]any); isMap {
				sc.engine.Parameters = m
			}
		}
		if child, ok := engine.Get("usesteps"); ok {
			b, isBool := child.Bool()
			if !isBool {
				return ioengine.NewBackendConfigSchema([]string{"engine", "usesteps"}, "not a boolean")
			}
			sc.engine.UseSteps = &b
		}
	}

	// flush_target carries an explicit _override config form in
	// addition to the environment ladder.
	target, ok := stringAt(engine, "flush_target_override")()
	if !ok {
		target, ok = knobValue(stringAt(engine, "flush_target"), "OPENPMD_FLUSH_TARGET")
	}
	if ok {
		ft := ioengine.FlushTarget(target)
		if ft != ioengine.FlushTargetBuffer && ft != ioengine.FlushTargetDisk {
			return ioengine.NewBackendConfigSchema([]string{"engine", "flush_target"},
				"want buffer or disk (got %q)", target)
		}
		sc.engine.FlushTarget = &ft
	}
	return nil
}

func (sc *seriesConfig) applyDatasetKeys(sub *config.TracingJSON) error {
	if sub == nil {
		return nil
	}
	dataset, ok := sub.Get("dataset")
	if !ok {
		return nil
	}
	operators, ok := dataset.Get("operators")
	if !ok {
		return nil
	}
	for i := 0; ; i++ {
		item, ok := operators.Index(i)
		if !ok {
			break
		}
		typeNode, ok := item.Get("type")
		if !ok {
			return ioengine.NewBackendConfigSchema([]string{"dataset", "operators"},
				"operator %d has no type", i)
		}
		opType, isStr := typeNode.String()
		if !isStr {
			return ioengine.NewBackendConfigSchema([]string{"dataset", "operators"},
				"operator %d type is not a string", i)
		}
		op := ioengine.DatasetOperator{Type: opType}
		if params, ok := item.Get("parameters"); ok {
			params.DeclareFullyRead()
			if m, isMap := params.Value().(map[string]any); isMap {
				op.Parameters = make(map[string]string, len(m))
				for k, v := range m {
					op.Parameters[k] = scalarString(v)
				}
			}
		}
		sc.operators = append(sc.operators, op)
	}
	return nil
}

// configure pushes the engine keys into the handler, if it accepts
// engine configuration; a handler that does not simply never sees
// them.
func (sc *seriesConfig) configure(handler ioengine.Handler) error {
	e := sc.engine
	if e.Type == "" && e.Parameters == nil && e.UseSteps == nil && e.FlushTarget == nil && e.Schema == nil {
		return nil
	}
	configurer, ok := handler.(ioengine.EngineConfigurer)
	if !ok {
		return nil
	}
	return configurer.ConfigureEngine(sc.engine)
}

// warnUnused reports every configuration key nothing consulted, once,
// by diffing the shadow against the original (§4.8).
func (sc *seriesConfig) warnUnused(logger *slog.Logger) {
	if sc == nil || sc.warned {
		return
	}
	sc.warned = true
	unused := sc.trace.InvertShadow()
	if len(unused) == 0 {
		return
	}
	logger.Warn("unused configuration keys", "keys", strings.Join(unused, ", "))
}
