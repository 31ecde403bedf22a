package common

import (
	"fmt"
	"strings"
)

// KBHandle identifies a single knowledge-base entry by its identifier (an IRI
// or similar globally unique string) together with the human-readable data
// needed to display it.
//
// Two handles denote the same entry when their identifiers are equal; label,
// description and provenance are not part of the identity. Use Identifier as
// the map key when deduplicating handles.
type KBHandle struct {
	Identifier  string `json:"identifier"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	// KB is the ID of the knowledge base the handle was retrieved from.
	KB string `json:"kb,omitempty"`
}

// Equal reports whether both handles refer to the same knowledge-base entry.
func (h KBHandle) Equal(other KBHandle) bool {
	return h.Identifier == other.Identifier
}

// RepositoryType describes where a knowledge base is hosted.
type RepositoryType string

const (
	RepositoryTypeLocal  RepositoryType = "local"
	RepositoryTypeRemote RepositoryType = "remote"
)

// KnowledgeBase is the registry entry of a knowledge base that belongs to a
// project. Remote knowledge bases carry the connection URL of the store that
// hosts their items; local ones live in the primary database.
type KnowledgeBase struct {
	ID              string         `json:"id"`
	ProjectID       int64          `json:"project_id"`
	Name            string         `json:"name"`
	Type            RepositoryType `json:"type"`
	Enabled         bool           `json:"enabled"`
	ConnectionURL   string         `json:"-"`
	DefaultLanguage string         `json:"default_language,omitempty"`
}

// IsLocal reports whether the knowledge base is hosted in the local store.
func (kb KnowledgeBase) IsLocal() bool {
	return kb.Type == RepositoryTypeLocal
}

// ValueType restricts which kind of knowledge-base item a query may return.
type ValueType string

const (
	ValueTypeAnyObject ValueType = "ANY_OBJECT"
	ValueTypeConcept   ValueType = "CONCEPT"
	ValueTypeInstance  ValueType = "INSTANCE"
)

// ParseValueType converts the external name of a value type. An empty string
// maps to ValueTypeAnyObject.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(ValueTypeAnyObject):
		return ValueTypeAnyObject, nil
	case string(ValueTypeConcept):
		return ValueTypeConcept, nil
	case string(ValueTypeInstance):
		return ValueTypeInstance, nil
	default:
		return "", fmt.Errorf("unknown value type: [%s]", s)
	}
}
