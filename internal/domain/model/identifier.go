package model

import "encoding/json"

type IdentifierKind int8

const (
	// [ZERO_VALUE_GUARD] absent is the zero value so missing wire fields need no handling
	IdentifierAbsent IdentifierKind = iota
	IdentifierString
	IdentifierNumber
)

// Identifier is an opaque producer-side ID that may arrive as a JSON string
// or a JSON number. Numbers keep their literal digits so 64-bit snowflakes
// survive without float rounding.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

func StringID(v string) Identifier { return Identifier{Kind: IdentifierString, Value: v} }
func NumberID(v string) Identifier { return Identifier{Kind: IdentifierNumber, Value: v} }

func (id Identifier) IsZero() bool   { return id.Kind == IdentifierAbsent }
func (id Identifier) String() string { return id.Value }

// MarshalJSON writes the identifier back in the representation it arrived in.
func (id Identifier) MarshalJSON() ([]byte, error) {
	switch id.Kind {
	case IdentifierNumber:
		return []byte(id.Value), nil
	case IdentifierString:
		return json.Marshal(id.Value)
	default:
		return []byte("null"), nil
	}
}
