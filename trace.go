package chainmap

import (
	"encoding/json"
	"fmt"
)

// Trace records how every layer contributed to the lookup of one key.
type Trace struct {
	Key       string       `json:"key"`
	Found     bool         `json:"found"`
	Effective int          `json:"effective"`
	Layers    []Provenance `json:"layers"`
}

// Provenance details one layer's contribution to a traced key.
type Provenance struct {
	Index     int    `json:"index"`
	Scope     *Scope `json:"scope,omitempty"`
	Value     any    `json:"value,omitempty"`
	Found     bool   `json:"found"`
	Effective bool   `json:"effective"`
}

// Trace reports, for each layer, whether it holds key and which layer
// supplies the effective value. Effective is -1 when no layer holds key.
func (c *Chain[K, V]) Trace(key K) Trace {
	trace := Trace{
		Key:       fmt.Sprint(key),
		Effective: -1,
		Layers:    make([]Provenance, len(c.layers)),
	}
	for i, layer := range c.layers {
		entry := Provenance{Index: i}
		if !c.scopes[i].isZero() {
			scope := c.scopes[i].clone()
			entry.Scope = &scope
		}
		if value, ok := layer.Lookup(key); ok {
			entry.Found = true
			entry.Value = value
			if trace.Effective < 0 {
				trace.Effective = i
				trace.Found = true
				entry.Effective = true
			}
		}
		trace.Layers[i] = entry
	}
	return trace
}

// Shadowed returns the layers holding a value hidden by the effective one.
func (t Trace) Shadowed() []Provenance {
	var out []Provenance
	for _, entry := range t.Layers {
		if entry.Found && !entry.Effective {
			out = append(out, entry)
		}
	}
	return out
}

// ToJSON serialises the trace for logging or transport.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON decodes a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
