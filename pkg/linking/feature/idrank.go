package feature

import (
	"context"
	"strconv"
	"strings"

	"github.com/gryn010/inception/pkg/linking"
)

// IDRank derives idRank from the trailing number of the identifier's local
// name, so Q42 ranks before Q4711. Identifiers without one keep the default.
type IDRank struct{}

func (IDRank) Name() string { return NameIDRank }

func (IDRank) Apply(_ context.Context, c *linking.CandidateEntity) error {
	if rank, ok := ParseIDRank(c.Handle().Identifier); ok {
		c.Features.IDRank = rank
	}
	return nil
}

// ParseIDRank returns the trailing integer of the local name of identifier.
func ParseIDRank(identifier string) (int64, bool) {
	local := strings.TrimRight(identifier, "/#")
	if i := strings.LastIndexAny(local, "/#:"); i >= 0 {
		local = local[i+1:]
	}

	end := len(local)
	start := end
	for start > 0 && local[start-1] >= '0' && local[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}

	rank, err := strconv.ParseInt(local[start:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return rank, true
}
