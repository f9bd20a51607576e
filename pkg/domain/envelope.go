package domain

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Envelope is a raw backend response document
type Envelope struct {
	Raw []byte
}

// NewEnvelope wraps a response body
func NewEnvelope(raw []byte) Envelope {
	return Envelope{Raw: raw}
}

// Empty reports whether the response carried no document
func (e Envelope) Empty() bool {
	return len(e.Raw) == 0 || !gjson.ValidBytes(e.Raw)
}

// Primary returns the "data" member
func (e Envelope) Primary() (json.RawMessage, bool) {
	return e.member("data")
}

// Included returns the "included" member. A missing or empty array reports false.
func (e Envelope) Included() (json.RawMessage, bool) {
	res := gjson.GetBytes(e.Raw, "included")
	if !res.IsArray() || len(res.Array()) == 0 {
		return nil, false
	}
	return json.RawMessage(res.Raw), true
}

// Meta returns a value from the "meta" member
func (e Envelope) Meta(key string) gjson.Result {
	return gjson.GetBytes(e.Raw, "meta."+gjsonEscape(key))
}

func (e Envelope) member(path string) (json.RawMessage, bool) {
	if e.Empty() {
		return nil, false
	}
	res := gjson.GetBytes(e.Raw, path)
	if !res.Exists() || res.Type == gjson.Null {
		return nil, false
	}
	return json.RawMessage(res.Raw), true
}

func gjsonEscape(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@':
			out = append(out, '\\')
		}
		out = append(out, key[i])
	}
	return string(out)
}
