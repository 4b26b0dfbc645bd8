package config

// Merge deep-merges overlay into base: object fields merge recursively,
// arrays and scalars in overlay replace the corresponding base value
// outright, and an explicit JSON null in overlay deletes the key from
// the result. base and overlay are not mutated; Merge returns a new
// tree.
func Merge(base, overlay any) any {
	baseObj, baseIsObj := base.(map[string]any)
	overlayObj, overlayIsObj := overlay.(map[string]any)
	if !baseIsObj || !overlayIsObj {
		return overlay
	}

	out := make(map[string]any, len(baseObj))
	for k, v := range baseObj {
		out[k] = v
	}
	for k, v := range overlayObj {
		if v == nil {
			delete(out, k)
			continue
		}
		if existing, ok := out[k]; ok {
			out[k] = Merge(existing, v)
		} else {
			out[k] = v
		}
	}
	return out
}
