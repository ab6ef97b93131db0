package codec

import "encoding/json"

// JSON encodes with encoding/json. It exists so that snapshots can be read
// and written without third-party decoders in the path.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return "json" }
