package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/store"
)

const knowledgeBaseColumns = `id, project_id, name, repo_type, enabled, COALESCE(connection_url, ''), COALESCE(default_language, '')`

const enabledKnowledgeBasesSQL = `
SELECT ` + knowledgeBaseColumns + `
FROM knowledge_bases
WHERE project_id = $1 AND enabled
ORDER BY id;
`

const knowledgeBaseByIDSQL = `
SELECT ` + knowledgeBaseColumns + `
FROM knowledge_bases
WHERE project_id = $1 AND id = $2;
`

const knowledgeBaseSQL = `
SELECT ` + knowledgeBaseColumns + `
FROM knowledge_bases
WHERE id = $1;
`

const entityStatsSQL = `
SELECT
    COALESCE((SELECT i.frequency FROM kb_items i WHERE i.kb_id = $1 AND i.identifier = $2 LIMIT 1), 0),
    (SELECT count(*) FROM kb_statements st WHERE st.kb_id = $1 AND (st.subject = $2 OR st.object = $2));
`

func scanKnowledgeBase(row pgx.Row) (common.KnowledgeBase, error) {
	var kb common.KnowledgeBase
	var repoType string
	err := row.Scan(&kb.ID, &kb.ProjectID, &kb.Name, &repoType, &kb.Enabled, &kb.ConnectionURL, &kb.DefaultLanguage)
	kb.Type = common.RepositoryType(repoType)
	return kb, err
}

// EnabledKnowledgeBases lists the enabled knowledge bases of a project
// ordered by ID.
func (s *KnowledgeBaseStore) EnabledKnowledgeBases(ctx context.Context, projectID int64) ([]common.KnowledgeBase, error) {
	rows, err := s.pool.Query(ctx, enabledKnowledgeBasesSQL, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	kbs := make([]common.KnowledgeBase, 0)
	for rows.Next() {
		kb, err := scanKnowledgeBase(rows)
		if err != nil {
			return nil, err
		}
		kbs = append(kbs, kb)
	}
	return kbs, rows.Err()
}

func (s *KnowledgeBaseStore) KnowledgeBaseByID(ctx context.Context, projectID int64, id string) (common.KnowledgeBase, error) {
	kb, err := scanKnowledgeBase(s.pool.QueryRow(ctx, knowledgeBaseByIDSQL, projectID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return common.KnowledgeBase{}, fmt.Errorf("%w: %s", store.ErrKnowledgeBaseNotFound, id)
	}
	return kb, err
}

// EntityStats reads the stored frequency of an item and counts the
// statements it takes part in. Remote knowledge bases are asked directly.
func (s *KnowledgeBaseStore) EntityStats(ctx context.Context, kbID string, identifier string) (store.EntityStats, error) {
	kb, err := scanKnowledgeBase(s.pool.QueryRow(ctx, knowledgeBaseSQL, kbID))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.EntityStats{}, fmt.Errorf("%w: %s", store.ErrKnowledgeBaseNotFound, kbID)
	}
	if err != nil {
		return store.EntityStats{}, err
	}

	pool, err := s.poolFor(ctx, kb)
	if err != nil {
		return store.EntityStats{}, err
	}

	var stats store.EntityStats
	err = pool.QueryRow(ctx, entityStatsSQL, kbID, identifier).Scan(&stats.Frequency, &stats.RelatedRelations)
	if err != nil {
		return store.EntityStats{}, fmt.Errorf("failed to read stats of %s: %w", identifier, err)
	}
	return stats, nil
}
