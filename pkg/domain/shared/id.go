package shared

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies persisted records such as saved reports and executions.
type ID struct {
	value uuid.UUID
}

// NewID creates a new random ID.
func NewID() ID {
	return ID{value: uuid.New()}
}

// IDFromString parses an ID.
func IDFromString(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: invalid id format", ErrValidation)
	}
	return ID{value: parsed}, nil
}

// String returns the canonical string form.
func (id ID) String() string {
	return id.value.String()
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.value == uuid.Nil
}

// Value implements driver.Valuer.
func (id ID) Value() (driver.Value, error) {
	return id.value.String(), nil
}

// Scan implements sql.Scanner.
func (id *ID) Scan(src any) error {
	var (
		parsed uuid.UUID
		err    error
	)
	switch v := src.(type) {
	case string:
		parsed, err = uuid.Parse(v)
	case []byte:
		parsed, err = uuid.ParseBytes(v)
	default:
		return fmt.Errorf("cannot scan type %T into ID", src)
	}
	if err != nil {
		return err
	}
	id.value = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := IDFromString(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
