// Package remover implements `rm` (spec.md §4.E): for each pattern
// argument, delete every file record whose name matches the GLOB,
// cascading to their index records.
package remover

import (
	"context"
	"fmt"

	"sindex/internal/store"
)

// Run deletes every file matching any of patterns and returns the total
// number of file records removed.
func Run(ctx context.Context, s *store.Store, patterns []string) (int64, error) {
	var total int64
	for _, pattern := range patterns {
		n, err := s.RemoveByPattern(ctx, pattern)
		if err != nil {
			return total, fmt.Errorf("remove %q: %w", pattern, err)
		}
		total += n
	}
	return total, nil
}
