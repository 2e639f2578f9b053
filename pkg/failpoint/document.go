package failpoint

import (
	"github.com/mitchellh/mapstructure"
)

// Document is a structured payload: JSON or TOML shaped values keyed by
// field name. A Document handed out by a fail point is a read-only snapshot.
type Document map[string]interface{}

// Has reports whether key is present.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Copy returns a deep copy of d. Nested documents, maps and slices are copied;
// leaf values are shared.
func (d Document) Copy() Document {
	if d == nil {
		return Document{}
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = copyValue(v)
	}
	return out
}

// Decode decodes the document into out, which must be a pointer to a struct or
// map. Field names are matched through `mapstructure` tags.
func (d Document) Decode(out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]interface{}(d))
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		return t.Copy()
	case map[string]interface{}:
		return map[string]interface{}(Document(t).Copy())
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(t))
		for i, e := range t {
			out[i] = map[string]interface{}(Document(e).Copy())
		}
		return out
	default:
		return v
	}
}

// asDocument returns v as a Document when it is an object.
func asDocument(v interface{}) (Document, bool) {
	switch t := v.(type) {
	case Document:
		return t, true
	case map[string]interface{}:
		return Document(t), true
	default:
		return nil, false
	}
}
