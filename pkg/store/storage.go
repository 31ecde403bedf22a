package store

import (
	"context"
	"errors"

	"github.com/gryn010/inception/pkg/common"
)

var (
	ErrUnknownItemKind       = errors.New("unknown item kind")
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")
)

// KnowledgeBaseStore opens scoped connections to the store that hosts a
// knowledge base. Every successful Open must be paired with Connection.Close.
type KnowledgeBaseStore interface {
	Open(ctx context.Context, kb common.KnowledgeBase) (Connection, error)
}

// Connection executes label queries against one knowledge base. It is not
// required to be safe for concurrent use.
type Connection interface {
	Query(ctx context.Context, query LabelQuery) ([]common.KBHandle, error)
	Close() error
}

// Registry resolves the knowledge bases configured for a project.
type Registry interface {
	EnabledKnowledgeBases(ctx context.Context, projectID int64) ([]common.KnowledgeBase, error)
	// KnowledgeBaseByID returns ErrKnowledgeBaseNotFound when the project has
	// no knowledge base with that ID.
	KnowledgeBaseByID(ctx context.Context, projectID int64, id string) (common.KnowledgeBase, error)
}

// EntityStats holds usage statistics the store keeps for a single item.
type EntityStats struct {
	Frequency        int64
	RelatedRelations int64
}

// StatsLookup reads per-item statistics. Implementations must be safe for
// concurrent use.
type StatsLookup interface {
	EntityStats(ctx context.Context, kbID string, identifier string) (EntityStats, error)
}
