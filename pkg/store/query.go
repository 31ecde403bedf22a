package store

import (
	"context"
	"fmt"

	"github.com/gryn010/inception/pkg/common"
)

// DefaultResultLimit caps the number of handles a single label query returns.
const DefaultResultLimit = 1000

// MatchMode selects how the labels of a LabelQuery are compared with item labels.
type MatchMode int

const (
	MatchExactly MatchMode = iota + 1
	MatchStartingWith
	MatchContaining
)

func (m MatchMode) String() string {
	switch m {
	case MatchExactly:
		return "exact"
	case MatchStartingWith:
		return "starting-with"
	case MatchContaining:
		return "containing"
	default:
		return fmt.Sprintf("match(%d)", int(m))
	}
}

// LabelQuery is the store-independent description of one label lookup.
// Label comparison is case-insensitive for every match mode.
type LabelQuery struct {
	Kind   common.ValueType `json:"kind"`
	Mode   MatchMode        `json:"mode"`
	Labels []string         `json:"labels"`
	// ChildrenOf restricts results to descendants of the given concept.
	ChildrenOf          string `json:"children_of,omitempty"`
	RetrieveLabel       bool   `json:"retrieve_label"`
	RetrieveDescription bool   `json:"retrieve_description"`
	Limit               int    `json:"limit"`
}

// QueryBuilder assembles a LabelQuery fluently:
//
//	store.ForClasses().
//		WithLabelStartingWith("Par").
//		ChildrenOf(scope).
//		RetrieveLabel().
//		RetrieveDescription().
//		AsHandles(ctx, conn)
type QueryBuilder struct {
	query LabelQuery
}

// NewQueryBuilder returns a builder for the item kind named by valueType.
// It fails with ErrUnknownItemKind for anything else.
func NewQueryBuilder(valueType common.ValueType) (*QueryBuilder, error) {
	switch valueType {
	case common.ValueTypeAnyObject:
		return ForItems(), nil
	case common.ValueTypeConcept:
		return ForClasses(), nil
	case common.ValueTypeInstance:
		return ForInstances(), nil
	default:
		return nil, fmt.Errorf("%w: [%s]", ErrUnknownItemKind, valueType)
	}
}

// ForItems queries classes and instances alike.
func ForItems() *QueryBuilder {
	return newBuilder(common.ValueTypeAnyObject)
}

func ForClasses() *QueryBuilder {
	return newBuilder(common.ValueTypeConcept)
}

func ForInstances() *QueryBuilder {
	return newBuilder(common.ValueTypeInstance)
}

func newBuilder(kind common.ValueType) *QueryBuilder {
	return &QueryBuilder{query: LabelQuery{Kind: kind, Limit: DefaultResultLimit}}
}

func (b *QueryBuilder) WithLabelMatchingExactlyAnyOf(labels ...string) *QueryBuilder {
	b.query.Mode = MatchExactly
	b.query.Labels = DedupeStrings(labels)
	return b
}

func (b *QueryBuilder) WithLabelStartingWith(prefix string) *QueryBuilder {
	b.query.Mode = MatchStartingWith
	b.query.Labels = DedupeStrings([]string{prefix})
	return b
}

func (b *QueryBuilder) WithLabelContainingAnyOf(labels ...string) *QueryBuilder {
	b.query.Mode = MatchContaining
	b.query.Labels = DedupeStrings(labels)
	return b
}

func (b *QueryBuilder) ChildrenOf(conceptIdentifier string) *QueryBuilder {
	b.query.ChildrenOf = conceptIdentifier
	return b
}

func (b *QueryBuilder) RetrieveLabel() *QueryBuilder {
	b.query.RetrieveLabel = true
	return b
}

func (b *QueryBuilder) RetrieveDescription() *QueryBuilder {
	b.query.RetrieveDescription = true
	return b
}

func (b *QueryBuilder) Limit(limit int) *QueryBuilder {
	if limit > 0 {
		b.query.Limit = limit
	}
	return b
}

// Build returns a copy of the assembled query.
func (b *QueryBuilder) Build() LabelQuery {
	q := b.query
	q.Labels = append([]string(nil), b.query.Labels...)
	return q
}

// AsHandles runs the query on conn. A query without labels matches nothing
// and is not sent to the store.
func (b *QueryBuilder) AsHandles(ctx context.Context, conn Connection) ([]common.KBHandle, error) {
	q := b.Build()
	if q.Mode == 0 {
		return nil, fmt.Errorf("label query without match mode")
	}
	if len(q.Labels) == 0 {
		return nil, nil
	}
	return conn.Query(ctx, q)
}
