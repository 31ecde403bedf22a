package pgx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/store"
)

// setupTestStore connects to TEST_DATABASE_URL, applies the schema and seeds
// a small geography knowledge base. The test is skipped without a database.
func setupTestStore(t *testing.T) *KnowledgeBaseStore {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "000001_knowledge_bases.up.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	const kb = "itest-geo"
	seed := []string{
		`DELETE FROM knowledge_bases WHERE id LIKE 'itest-%'`,
		`DELETE FROM kb_items WHERE kb_id = 'itest-geo'`,
		`DELETE FROM kb_subclass WHERE kb_id = 'itest-geo'`,
		`DELETE FROM kb_instance_of WHERE kb_id = 'itest-geo'`,
		`DELETE FROM kb_statements WHERE kb_id = 'itest-geo'`,
		`INSERT INTO knowledge_bases (id, project_id, name, repo_type, enabled) VALUES
			('itest-geo', 9001, 'Geo', 'local', TRUE),
			('itest-off', 9001, 'Off', 'local', FALSE)`,
		`INSERT INTO kb_items (kb_id, identifier, label, description, kind, frequency) VALUES
			('itest-geo', 'geo:Place', 'Place', NULL, 'class', 0),
			('itest-geo', 'geo:City', 'City', NULL, 'class', 0),
			('itest-geo', 'geo:Capital', 'Capital city', NULL, 'class', 0),
			('itest-geo', 'geo:Q90', 'Paris', 'capital of France', 'instance', 100),
			('itest-geo', 'geo:Q830149', 'Paris', 'city in Texas', 'instance', 5),
			('itest-geo', 'geo:Q1', '100%_Pure', NULL, 'instance', 0)`,
		`INSERT INTO kb_subclass (kb_id, child, parent) VALUES
			('itest-geo', 'geo:City', 'geo:Place'),
			('itest-geo', 'geo:Capital', 'geo:City')`,
		`INSERT INTO kb_instance_of (kb_id, instance, class) VALUES
			('itest-geo', 'geo:Q90', 'geo:Capital'),
			('itest-geo', 'geo:Q830149', 'geo:City')`,
		`INSERT INTO kb_statements (kb_id, subject, predicate, object) VALUES
			('itest-geo', 'geo:Q90', 'capitalOf', 'geo:France'),
			('itest-geo', 'geo:Eiffel', 'locatedIn', 'geo:Q90')`,
	}
	for _, stmt := range seed {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("seed %s: %v", kb, err)
		}
	}

	s := NewKnowledgeBaseStore(pool)
	t.Cleanup(s.Close)
	return s
}

func TestKnowledgeBaseStore_Queries(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	kb, err := s.KnowledgeBaseByID(ctx, 9001, "itest-geo")
	if err != nil {
		t.Fatalf("KnowledgeBaseByID: %v", err)
	}
	conn, err := s.Open(ctx, kb)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	tests := []struct {
		name    string
		builder *store.QueryBuilder
		want    int
	}{
		{"exact is case-insensitive", store.ForItems().WithLabelMatchingExactlyAnyOf("paris"), 2},
		{"prefix", store.ForInstances().WithLabelStartingWith("Par"), 2},
		{"containing", store.ForClasses().WithLabelContainingAnyOf("city"), 2},
		{"wildcards match literally", store.ForItems().WithLabelContainingAnyOf("%_"), 1},
		{"scope includes sub classes", store.ForInstances().WithLabelContainingAnyOf("paris").ChildrenOf("geo:City"), 2},
		{"scope excludes siblings", store.ForInstances().WithLabelContainingAnyOf("paris").ChildrenOf("geo:Capital"), 1},
		{"scoped classes", store.ForClasses().WithLabelContainingAnyOf("c").ChildrenOf("geo:Place"), 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.builder.RetrieveLabel().RetrieveDescription().AsHandles(ctx, conn)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("got %d handles %v, want %d", len(got), got, tc.want)
			}
			for _, h := range got {
				if h.KB != "itest-geo" || h.Label == "" {
					t.Fatalf("incomplete handle %+v", h)
				}
			}
		})
	}
}

func TestKnowledgeBaseStore_Registry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	kbs, err := s.EnabledKnowledgeBases(ctx, 9001)
	if err != nil {
		t.Fatal(err)
	}
	if len(kbs) != 1 || kbs[0].ID != "itest-geo" || kbs[0].Type != common.RepositoryTypeLocal {
		t.Fatalf("unexpected knowledge bases %+v", kbs)
	}

	if _, err := s.KnowledgeBaseByID(ctx, 9001, "itest-none"); !errors.Is(err, store.ErrKnowledgeBaseNotFound) {
		t.Fatalf("expected ErrKnowledgeBaseNotFound, got %v", err)
	}
	if _, err := s.KnowledgeBaseByID(ctx, 1, "itest-geo"); !errors.Is(err, store.ErrKnowledgeBaseNotFound) {
		t.Fatalf("expected project mismatch to be not found, got %v", err)
	}

	stats, err := s.EntityStats(ctx, "itest-geo", "geo:Q90")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Frequency != 100 || stats.RelatedRelations != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
