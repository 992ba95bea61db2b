package codedb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the state of a key in the store.
type Kind int

const (
	// Function holds a stored function body.
	Function Kind = iota
	// Locked keys reject every further write.
	Locked
	// Deleted keys look up as absent but may be defined again.
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Function:
		return "Function"
	case Locked:
		return "Locked"
	case Deleted:
		return "Deleted"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is the latest state of a key.
// Body is only set for Function values.
type Value struct {
	Kind Kind
	Body string
}

// MarshalJSON encodes a Function as {"Function": body}
// and the other kinds as their bare name.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Function:
		return json.Marshal(map[string]string{"Function": v.Body})
	case Locked, Deleted:
		return json.Marshal(v.Kind.String())
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, int(v.Kind))
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		switch name {
		case "Locked":
			*v = Value{Kind: Locked}
		case "Deleted":
			*v = Value{Kind: Deleted}
		default:
			return fmt.Errorf("%w: unknown value %q", ErrCorrupt, name)
		}
		return nil
	}

	var tagged map[string]string
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	body, ok := tagged["Function"]
	if !ok || len(tagged) != 1 {
		return fmt.Errorf("%w: value %s", ErrCorrupt, data)
	}
	*v = Value{Kind: Function, Body: body}
	return nil
}

// Entry is one record of the log.
type Entry struct {
	// ID is a ULID. Records written by older versions of the bot have none.
	ID         string    `json:"id,omitempty"`
	Key        string    `json:"key"`
	Value      Value     `json:"value"`
	ModifiedBy string    `json:"modified_by"`
	Date       time.Time `json:"date"`
}

// UnmarshalJSON implements json.Unmarshaler.
// Every field except ID must be present; a missing one is ErrCorrupt.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var rec struct {
		ID         string     `json:"id"`
		Key        *string    `json:"key"`
		Value      *Value     `json:"value"`
		ModifiedBy *string    `json:"modified_by"`
		Date       *time.Time `json:"date"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	switch {
	case rec.Key == nil:
		return fmt.Errorf("%w: missing key", ErrCorrupt)
	case rec.Value == nil:
		return fmt.Errorf("%w: missing value", ErrCorrupt)
	case rec.ModifiedBy == nil:
		return fmt.Errorf("%w: missing modified_by", ErrCorrupt)
	case rec.Date == nil:
		return fmt.Errorf("%w: missing date", ErrCorrupt)
	}
	*e = Entry{
		ID:         rec.ID,
		Key:        *rec.Key,
		Value:      *rec.Value,
		ModifiedBy: *rec.ModifiedBy,
		Date:       *rec.Date,
	}
	return nil
}
