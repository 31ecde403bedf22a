// Package memory provides an in-process knowledge-base store. It implements
// the same contracts as the Postgres store and is used for embedded setups
// and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/store"
)

var ErrClosed = errors.New("connection closed")

// Item is a knowledge-base entry held by the memory store.
type Item struct {
	Handle common.KBHandle
	// Class marks concepts; everything else is an instance.
	Class bool
	// Parents lists super classes of a class or the classes of an instance.
	Parents   []string
	Frequency int64
	Relations int64
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	kbs   map[string]common.KnowledgeBase
	items map[string][]Item
}

func New() *Store {
	return &Store{
		kbs:   make(map[string]common.KnowledgeBase),
		items: make(map[string][]Item),
	}
}

func (s *Store) AddKnowledgeBase(kb common.KnowledgeBase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kbs[kb.ID] = kb
}

func (s *Store) AddItems(kbID string, items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		it.Handle.KB = kbID
		s.items[kbID] = append(s.items[kbID], it)
	}
}

func (s *Store) Open(ctx context.Context, kb common.KnowledgeBase) (store.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	_, ok := s.kbs[kb.ID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrKnowledgeBaseNotFound, kb.ID)
	}
	return &conn{store: s, kbID: kb.ID}, nil
}

func (s *Store) EnabledKnowledgeBases(ctx context.Context, projectID int64) ([]common.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.KnowledgeBase, 0)
	for _, kb := range s.kbs {
		if kb.ProjectID == projectID && kb.Enabled {
			out = append(out, kb)
		}
	}
	slices.SortFunc(out, func(a, b common.KnowledgeBase) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) KnowledgeBaseByID(ctx context.Context, projectID int64, id string) (common.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kb, ok := s.kbs[id]
	if !ok || kb.ProjectID != projectID {
		return common.KnowledgeBase{}, fmt.Errorf("%w: %s", store.ErrKnowledgeBaseNotFound, id)
	}
	return kb, nil
}

func (s *Store) EntityStats(ctx context.Context, kbID string, identifier string) (store.EntityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, it := range s.items[kbID] {
		if it.Handle.Identifier == identifier {
			return store.EntityStats{Frequency: it.Frequency, RelatedRelations: it.Relations}, nil
		}
	}
	return store.EntityStats{}, nil
}

type conn struct {
	store  *Store
	kbID   string
	closed bool
}

func (c *conn) Close() error {
	c.closed = true
	return nil
}

func (c *conn) Query(ctx context.Context, q store.LabelQuery) ([]common.KBHandle, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.store.mu.RLock()
	items := c.store.items[c.kbID]
	var scope map[string]struct{}
	if q.ChildrenOf != "" {
		scope = descendantsOf(items, q.ChildrenOf)
	}
	c.store.mu.RUnlock()

	out := make([]common.KBHandle, 0)
	for _, it := range items {
		if !kindMatches(q.Kind, it) {
			continue
		}
		if scope != nil && !inScope(it, q.ChildrenOf, scope) {
			continue
		}
		if !labelMatches(q, it.Handle.Label) {
			continue
		}
		h := it.Handle
		if !q.RetrieveDescription {
			h.Description = ""
		}
		out = append(out, h)
	}

	slices.SortFunc(out, func(a, b common.KBHandle) int {
		if r := strings.Compare(a.Label, b.Label); r != 0 {
			return r
		}
		return strings.Compare(a.Identifier, b.Identifier)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func kindMatches(kind common.ValueType, it Item) bool {
	switch kind {
	case common.ValueTypeConcept:
		return it.Class
	case common.ValueTypeInstance:
		return !it.Class
	default:
		return true
	}
}

func labelMatches(q store.LabelQuery, label string) bool {
	l := strings.ToLower(label)
	for _, want := range q.Labels {
		w := strings.ToLower(want)
		switch q.Mode {
		case store.MatchExactly:
			if l == w {
				return true
			}
		case store.MatchStartingWith:
			if strings.HasPrefix(l, w) {
				return true
			}
		case store.MatchContaining:
			if strings.Contains(l, w) {
				return true
			}
		}
	}
	return false
}

// descendantsOf returns the identifiers of all classes below root, excluding root.
func descendantsOf(items []Item, root string) map[string]struct{} {
	children := make(map[string][]string)
	for _, it := range items {
		if !it.Class {
			continue
		}
		for _, p := range it.Parents {
			children[p] = append(children[p], it.Handle.Identifier)
		}
	}

	out := make(map[string]struct{})
	queue := []string{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur] {
			if _, ok := out[child]; ok {
				continue
			}
			out[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return out
}

// inScope is true for classes below the scope root and for instances of the
// root or of any class below it.
func inScope(it Item, root string, descendants map[string]struct{}) bool {
	if it.Class {
		_, ok := descendants[it.Handle.Identifier]
		return ok
	}
	for _, p := range it.Parents {
		if _, ok := descendants[p]; ok || p == root {
			return true
		}
	}
	return false
}
