package gitcli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	"github.com/coldfix/git-filter-tree/modules/command"
	"github.com/coldfix/git-filter-tree/modules/oid"
)

// Walker implements rewrite.RevListWalker by shelling out to `git
// rev-list`, the rev-list walker external collaborator spec §1 leaves
// unspecified beyond "enumerates starting points". Roots returns the
// commits `git rev-list <refspecs>` would print, each a root the
// Driver's rewrite phase processes independently.
type Walker struct {
	gitDir string
	env    []string
}

// NewWalker builds a Walker over the git repository at gitDir.
func NewWalker(gitDir string) *Walker {
	return &Walker{gitDir: gitDir}
}

// Roots implements rewrite.RevListWalker.
func (w *Walker) Roots(ctx context.Context, refspecs []string) ([]oid.OID, error) {
	args := append([]string{"--git-dir", w.gitDir, "rev-list"}, refspecs...)
	c := command.New(ctx, "", w.env, "git", args...)
	out, err := c.Output()
	if err != nil {
		return nil, fmt.Errorf("gitcli: rev-list %v: %w", refspecs, err)
	}
	var roots []oid.OID
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		roots = append(roots, oid.New(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("gitcli: rev-list %v: %w", refspecs, err)
	}
	return roots, nil
}
