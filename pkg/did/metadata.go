package did

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Metadata is a string-keyed map that preserves insertion order when
// serialized. The zero value is ready to use.
type Metadata struct {
	om *orderedmap.OrderedMap[string, any]
}

// NewMetadata creates an empty Metadata.
func NewMetadata() Metadata {
	return Metadata{om: orderedmap.New[string, any]()}
}

func (m *Metadata) init() {
	if m.om == nil {
		m.om = orderedmap.New[string, any]()
	}
}

// Set stores value under key. Re-setting an existing key keeps its position.
func (m *Metadata) Set(key string, value any) {
	m.init()
	m.om.Set(key, value)
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (any, bool) {
	if m.om == nil {
		return nil, false
	}
	return m.om.Get(key)
}

// GetString returns the value under key if it is a string.
func (m *Metadata) GetString(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Has reports whether key is present.
func (m *Metadata) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key.
func (m *Metadata) Delete(key string) {
	if m.om != nil {
		m.om.Delete(key)
	}
}

// Len returns the number of entries.
func (m *Metadata) Len() int {
	if m.om == nil {
		return 0
	}
	return m.om.Len()
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	if m.om == nil {
		return nil
	}
	keys := make([]string, 0, m.om.Len())
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Merge copies every entry of other into m, in other's order.
func (m *Metadata) Merge(other Metadata) {
	if other.om == nil {
		return
	}
	m.init()
	for pair := other.om.Oldest(); pair != nil; pair = pair.Next() {
		m.om.Set(pair.Key, pair.Value)
	}
}

// Copy returns a shallow copy with its own ordering.
func (m Metadata) Copy() Metadata {
	c := NewMetadata()
	c.Merge(m)
	return c
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.om == nil {
		return []byte("{}"), nil
	}
	return m.om.MarshalJSON()
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	om := orderedmap.New[string, any]()
	if err := om.UnmarshalJSON(b); err != nil {
		return err
	}
	m.om = om
	return nil
}
