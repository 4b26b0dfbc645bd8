package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"openpmd/ioengine"
)

// Keys whose values are opaque, backend-specific maps and must not be
// case-normalized or interpreted by this package. Matched against the
// dot-joined path of lower-cased ancestor keys, either exactly or as its
// suffix after a backend key (e.g. "json.engine.parameters").
var opaqueKeyPaths = map[string]bool{
	"engine.parameters":            true,
	"dataset.operators.parameters": true,
}

// Parse decodes a user-supplied configuration string. raw may be
// inline JSON, inline TOML, or "@path/to/file.json"/"@path/to/file.toml"
// (the referenced file's extension selects the format; anything else
// is rejected). The result is normalized (object keys lower-cased,
// except under an opaque subtree) and wrapped for read-tracing.
func Parse(raw string) (*TracingJSON, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewTracingJSON(map[string]any{}), nil
	}

	if strings.HasPrefix(raw, "@") {
		return parseFile(strings.TrimPrefix(raw, "@"))
	}
	return parseInline(raw)
}

func parseFile(path string) (*TracingJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioengine.NewParseError("reading config file %q: %v", path, err)
	}
	switch {
	case strings.HasSuffix(path, ".toml"):
		return decodeTOML(data)
	case strings.HasSuffix(path, ".json"):
		return decodeJSON(data)
	default:
		return nil, ioengine.NewParseError("config file %q has an unrecognized extension (want .json or .toml)", path)
	}
}

func parseInline(raw string) (*TracingJSON, error) {
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return decodeJSON([]byte(raw))
	}
	// Not obviously JSON: try TOML first, since openPMD's supported
	// inline-TOML configs are always object-shaped and JSON would have
	// matched the branch above.
	t, err := decodeTOML([]byte(raw))
	if err == nil {
		return t, nil
	}
	return decodeJSON([]byte(raw))
}

func decodeJSON(data []byte) (*TracingJSON, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, ioengine.NewParseError("invalid JSON configuration: %v", err)
	}
	return NewTracingJSON(normalizeKeys(v, "")), nil
}

func decodeTOML(data []byte) (*TracingJSON, error) {
	var v any
	if err := toml.Unmarshal(data, &v); err != nil {
		return nil, ioengine.NewParseError("invalid TOML configuration: %v", err)
	}
	return NewTracingJSON(normalizeKeys(jsonify(v), "")), nil
}

// jsonify converts go-toml's decoded value tree (which may use
// map[string]interface{} with non-float numeric types) into the same
// shape encoding/json would have produced, so downstream code only
// ever has to handle one representation.
func jsonify(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = jsonify(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = jsonify(child)
		}
		return out
	case int64:
		return float64(val)
	case int:
		return float64(val)
	default:
		return val
	}
}

// normalizeKeys lower-cases object keys, except within a subtree whose
// dot-joined lower-cased path is, or ends with "." followed by, an entry
// in opaqueKeyPaths, which is passed through verbatim.
func normalizeKeys(v any, path string) any {
	switch val := v.(type) {
	case map[string]any:
		for p := range opaqueKeyPaths {
			if path == p || strings.HasSuffix(path, "."+p) {
				return val
			}
		}
		out := make(map[string]any, len(val))
		for k, child := range val {
			lower := strings.ToLower(k)
			childPath := lower
			if path != "" {
				childPath = path + "." + lower
			}
			out[lower] = normalizeKeys(child, childPath)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeKeys(child, path)
		}
		return out
	default:
		return val
	}
}
