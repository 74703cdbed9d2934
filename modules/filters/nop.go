package filters

import (
	"context"

	"github.com/coldfix/git-filter-tree/modules/objstore"
)

// NOP is the identity filter, grounded on
// original_source/git_filter_tree/nop.py's "should (slowly) do nothing
// on your repo" — useful for exercising the engine's traversal,
// memoization and fixed-point logic without any actual content change.
type NOP struct{}

func (NOP) Name() string { return "nop" }

// RewriteFile returns the entry unchanged.
func (NOP) RewriteFile(_ context.Context, e objstore.Entry) ([]objstore.Entry, error) {
	return []objstore.Entry{e}, nil
}
