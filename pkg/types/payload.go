package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Payload holds the free-form attributes of a store event persisted as JSONB.
type Payload map[string]any

// Value marshals the map into JSON text so both Postgres jsonb and SQLite json1 accept it.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the map.
func (p *Payload) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("payload: unsupported scan type %T", value)
	}

	result := make(Payload)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*p = result
	return nil
}
