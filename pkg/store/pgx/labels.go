package pgx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/store"
)

// scopeCTE collects every class below the scope root ($2).
const scopeCTE = `WITH RECURSIVE scope(identifier) AS (
    SELECT sc.child FROM kb_subclass sc WHERE sc.kb_id = $1 AND sc.parent = $2
    UNION
    SELECT sc.child FROM kb_subclass sc
    JOIN scope ON sc.parent = scope.identifier
    WHERE sc.kb_id = $1
)
`

const instanceInScope = `EXISTS (
        SELECT 1 FROM kb_instance_of io
        WHERE io.kb_id = $1 AND io.instance = i.identifier
          AND (io.class = $2 OR io.class IN (SELECT identifier FROM scope))
    )`

// buildLabelQuery renders q as SQL against kb_items. Labels are compared
// lowercased; LIKE patterns are escaped so that labels match literally.
func buildLabelQuery(kbID string, q store.LabelQuery) (string, []any, error) {
	args := []any{kbID}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	var sb strings.Builder
	if q.ChildrenOf != "" {
		arg(q.ChildrenOf)
		sb.WriteString(scopeCTE)
	}

	label := "''"
	if q.RetrieveLabel {
		label = "i.label"
	}
	description := "''"
	if q.RetrieveDescription {
		description = "COALESCE(i.description, '')"
	}
	fmt.Fprintf(&sb, "SELECT i.identifier, %s, %s, COALESCE(i.language, '')\nFROM kb_items i\nWHERE i.kb_id = $1", label, description)

	switch q.Kind {
	case common.ValueTypeConcept:
		sb.WriteString("\n  AND i.kind = 'class'")
	case common.ValueTypeInstance:
		sb.WriteString("\n  AND i.kind = 'instance'")
	case common.ValueTypeAnyObject:
	default:
		return "", nil, fmt.Errorf("%w: [%s]", store.ErrUnknownItemKind, q.Kind)
	}

	if q.ChildrenOf != "" {
		switch q.Kind {
		case common.ValueTypeConcept:
			sb.WriteString("\n  AND i.identifier IN (SELECT identifier FROM scope)")
		case common.ValueTypeInstance:
			sb.WriteString("\n  AND " + instanceInScope)
		default:
			sb.WriteString("\n  AND (i.identifier IN (SELECT identifier FROM scope) OR " + instanceInScope + ")")
		}
	}

	lowered := make([]string, 0, len(q.Labels))
	for _, l := range q.Labels {
		lowered = append(lowered, strings.ToLower(l))
	}
	switch q.Mode {
	case store.MatchExactly:
		fmt.Fprintf(&sb, "\n  AND lower(i.label) = ANY(%s::text[])", arg(lowered))
	case store.MatchStartingWith:
		fmt.Fprintf(&sb, "\n  AND lower(i.label) LIKE %s", arg(store.EscapeLike(lowered[0])+"%"))
	case store.MatchContaining:
		patterns := make([]string, 0, len(lowered))
		for _, l := range lowered {
			patterns = append(patterns, "%"+store.EscapeLike(l)+"%")
		}
		fmt.Fprintf(&sb, "\n  AND lower(i.label) LIKE ANY(%s::text[])", arg(patterns))
	default:
		return "", nil, fmt.Errorf("unsupported match mode %s", q.Mode)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultResultLimit
	}
	fmt.Fprintf(&sb, "\nORDER BY i.label, i.identifier\nLIMIT %s", arg(limit))

	return sb.String(), args, nil
}
