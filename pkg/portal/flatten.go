package portal

import "strconv"

// keyDelimiter joins the keys of nested values, e.g. "battery|soc".
const keyDelimiter = "|"

// flatten turns nested maps and lists into a single level map. List elements
// are keyed by their index. Empty containers are kept as leaves so they are
// not silently lost.
func flatten(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		flattenInto(out, k, v)
	}
	return out
}

func flattenInto(out map[string]any, key string, v any) {
	switch vv := v.(type) {
	case map[string]any:
		if len(vv) == 0 {
			out[key] = vv
			return
		}
		for k, child := range vv {
			flattenInto(out, key+keyDelimiter+k, child)
		}
	case []any:
		if len(vv) == 0 {
			out[key] = vv
			return
		}
		for i, child := range vv {
			flattenInto(out, key+keyDelimiter+strconv.Itoa(i), child)
		}
	default:
		out[key] = v
	}
}
