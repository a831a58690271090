package nl2sql

import (
	"fmt"
	"strings"
)

// Kind is the top-level SQL statement category produced by a builder.
type Kind int

const (
	KindUnknown Kind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	KindCreate
	KindAlter
	KindDrop
)

// Kinds lists the buildable kinds in classification order. Earlier kinds win ties.
var Kinds = []Kind{KindSelect, KindInsert, KindUpdate, KindDelete, KindCreate, KindAlter, KindDrop}

var kindNames = map[Kind]string{
	KindUnknown: "UNKNOWN",
	KindSelect:  "SELECT",
	KindInsert:  "INSERT",
	KindUpdate:  "UPDATE",
	KindDelete:  "DELETE",
	KindCreate:  "CREATE",
	KindAlter:   "ALTER",
	KindDrop:    "DROP",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(value string) Kind {
	value = strings.ToUpper(strings.TrimSpace(value))
	for kind, name := range kindNames {
		if name == value {
			return kind
		}
	}
	return KindUnknown
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}
