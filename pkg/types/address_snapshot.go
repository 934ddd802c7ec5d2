package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// AddressSnapshot stores the delivery destination frozen on an order.
type AddressSnapshot struct {
	Line1   string  `json:"line1"`
	Line2   *string `json:"line2,omitempty"`
	City    string  `json:"city"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
}

// Value serializes the snapshot to JSON.
func (a *AddressSnapshot) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan decodes JSONB into the snapshot struct.
func (a *AddressSnapshot) Scan(value interface{}) error {
	if value == nil {
		*a = AddressSnapshot{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*a = AddressSnapshot{}
		return nil
	}
	return json.Unmarshal(raw, a)
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported jsonb source %T", value)
	}
}
