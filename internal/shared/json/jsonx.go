package jsonx

import "github.com/goccy/go-json"

// Thin wrapper so the session log, the LLM wire codec and tool argument
// decoding share one JSON implementation.
var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	Valid         = json.Valid
	NewDecoder    = json.NewDecoder
	NewEncoder    = json.NewEncoder
)

type RawMessage = json.RawMessage

// Compact returns raw with insignificant whitespace removed, or raw unchanged
// when it is not valid JSON.
func Compact(raw []byte) []byte {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return out
}
