// Package codec holds the metadata encodings a snapshot can use.
//
// A snapshot records the codec name in its header and is decoded with
// whatever [ByName] returns for it, so the default can change without
// breaking older snapshots.
package codec

import (
	"fmt"
	"maps"
	"slices"
)

// Codec marshals metadata maps. Implementations are stateless and safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is used for snapshots unless the engine is given another codec.
var Default Codec = GoJSON{}

var builtin = map[string]Codec{
	GoJSON{}.Name():  GoJSON{},
	JSON{}.Name():    JSON{},
	Msgpack{}.Name(): Msgpack{},
}

// ByName returns the codec a snapshot header refers to.
func ByName(name string) (Codec, bool) {
	c, ok := builtin[name]
	return c, ok
}

// Names returns the names accepted by ByName in ascending order.
func Names() []string {
	return slices.Sorted(maps.Keys(builtin))
}

// MustMarshal marshals v with c, or with Default when c is nil, and panics
// on error.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s: %w", c.Name(), err))
	}
	return b
}
