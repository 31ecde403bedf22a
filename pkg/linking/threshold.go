package linking

import "github.com/gryn010/inception/pkg/common"

const (
	LocalQueryThreshold  = 0
	RemoteQueryThreshold = 3
)

// QueryThreshold returns the query length up to which a query is only matched
// exactly. Remote stores get a positive threshold so that very short queries
// never turn into prefix or substring scans there.
func QueryThreshold(kb common.KnowledgeBase) int {
	if kb.IsLocal() {
		return LocalQueryThreshold
	}
	return RemoteQueryThreshold
}
