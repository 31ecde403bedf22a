package store

import (
	"strings"

	"github.com/gryn010/inception/pkg/common"
)

// DedupeStrings drops empty and repeated values, keeping first-seen order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// EscapeLike escapes the LIKE wildcards of s using backslash as escape character.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// MergeHandles appends the handles of batch that are not yet in seen, in batch
// order, and returns the extended slice.
func MergeHandles(dst []common.KBHandle, seen map[string]struct{}, batch []common.KBHandle) []common.KBHandle {
	for _, h := range batch {
		if _, ok := seen[h.Identifier]; ok {
			continue
		}
		seen[h.Identifier] = struct{}{}
		dst = append(dst, h)
	}
	return dst
}
