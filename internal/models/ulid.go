package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// ULID is a ulid.ULID stored as its 26-character text form. The zero value
// maps to SQL NULL and JSON null.
type ULID ulid.ULID

// NewULID mints a ULID from the current time.
func NewULID() ULID {
	return ULID(ulid.Make())
}

// ParseULID parses the 26-character text form.
func ParseULID(s string) (ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ULID{}, fmt.Errorf("invalid ULID: %w", err)
	}
	return ULID(id), nil
}

func (u ULID) String() string {
	return ulid.ULID(u).String()
}

// IsZero reports whether u is the zero ULID.
func (u ULID) IsZero() bool {
	return u == ULID{}
}

// assign parses the text form into u, mapping "" to the zero ULID.
func (u *ULID) assign(s string) error {
	if s == "" {
		*u = ULID{}
		return nil
	}
	id, err := ulid.Parse(s)
	if err != nil {
		return err
	}
	*u = ULID(id)
	return nil
}

// Value implements driver.Valuer. The zero ULID stores as NULL.
func (u ULID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return u.String(), nil
}

// Scan implements sql.Scanner. NULL and empty values scan to the zero ULID.
func (u *ULID) Scan(value any) error {
	var s string
	switch v := value.(type) {
	case nil:
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scanning ULID: unsupported type %T", value)
	}

	if err := u.assign(s); err != nil {
		return fmt.Errorf("scanning ULID: %w", err)
	}
	return nil
}

// MarshalJSON renders the text form, or null for the zero ULID.
func (u ULID) MarshalJSON() ([]byte, error) {
	if u.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(u.String())
}

// UnmarshalJSON accepts the text form, "" or null.
func (u *ULID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*u = ULID{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("ULID must be a JSON string: %w", err)
	}
	if err := u.assign(s); err != nil {
		return fmt.Errorf("parsing ULID: %w", err)
	}
	return nil
}

// GormDataType sizes the column for the text form.
func (ULID) GormDataType() string {
	return "varchar(26)"
}
