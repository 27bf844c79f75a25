// internal/render/json.go
package render

import (
	"bytes"
	"encoding/json"
)

// jsonBlock pretty-prints v (raw bytes or any value) inside a json fence.
func (r *Renderer) jsonBlock(v any) string {
	var raw []byte
	switch x := v.(type) {
	case []byte:
		raw = x
	case json.RawMessage:
		raw = x
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return codeBlock("json", "null")
		}
		raw = data
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return codeBlock("json", r.Truncate(string(raw)))
	}
	return codeBlock("json", r.Truncate(buf.String()))
}
