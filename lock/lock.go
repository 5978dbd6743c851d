// Package lock serializes work on named keys. Keys are always acquired in sorted order so that two callers locking
// overlapping key sets cannot deadlock each other.
package lock

import (
	"context"
	"sort"
)

// Nop does not lock anything. It is only useful where another mechanism (such as row locks) already serializes
// writers.
type Nop struct{}

func (Nop) Lock(_ context.Context, _ ...string) (func(), error) {
	return func() {}, nil
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
