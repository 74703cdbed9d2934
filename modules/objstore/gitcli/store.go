// Package gitcli is a concrete Object Store Adapter (objstore.Store)
// backed by a real git repository, driven entirely through git's own
// plumbing commands (`cat-file`, `ls-tree`, `mktree`, `hash-object`,
// `commit-tree`, `rev-parse`, `update-ref`). It is the "external
// collaborator" spec §1 says the core does not itself implement — this
// package exists so the engine has a runnable, real backing store
// rather than only an interface.
package gitcli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/coldfix/git-filter-tree/modules/command"
	"github.com/coldfix/git-filter-tree/modules/filemode"
	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/oid"
)

// Store talks to a single git repository's object database via
// subprocesses. It is safe for concurrent use: every method spawns its
// own short-lived `git` subprocess, so there is no shared mutable
// subprocess state to race on (the engine's own memoization layer,
// not this adapter, is what bounds duplicate work).
type Store struct {
	gitDir string
	env    []string

	// kindCache fronts LookupKind with an in-process LRU, avoiding a
	// repeat `git cat-file -t` subprocess for OIDs the traversal visits
	// more than once outside the engine's own memoization (e.g. two
	// unrelated filters probing the same blob's kind). Mirrors the
	// teacher's backend.Database.metaLRU (dgraph-io/ristretto).
	kindCache *ristretto.Cache[string, oid.Kind]
}

// New opens the object database of the git repository at gitDir (the
// path a plain `git rev-parse --git-dir` would print).
func New(gitDir string) (*Store, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, oid.Kind]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("gitcli: build kind cache: %w", err)
	}
	return &Store{gitDir: gitDir, kindCache: cache}, nil
}

func (s *Store) cmd(ctx context.Context, name string, args ...string) *command.Command {
	return command.New(ctx, "", s.env, "git", append([]string{"--git-dir", s.gitDir, name}, args...)...)
}

// LookupKind implements objstore.Store.
func (s *Store) LookupKind(ctx context.Context, id oid.OID) (oid.Kind, error) {
	key := id.String()
	if k, ok := s.kindCache.Get(key); ok {
		return k, nil
	}
	out, err := s.cmd(ctx, "cat-file", "-t", key).OneLine()
	if err != nil {
		return oid.Unknown, notFoundOr(err)
	}
	k := kindFromString(out)
	if k == oid.Unknown {
		return oid.Unknown, objstore.ErrCorrupt
	}
	s.kindCache.Set(key, k, 1)
	return k, nil
}

func kindFromString(s string) oid.Kind {
	switch s {
	case "blob":
		return oid.Blob
	case "tree":
		return oid.Tree
	case "commit":
		return oid.Commit
	case "tag":
		return oid.Tag
	default:
		return oid.Unknown
	}
}

// ReadBlob implements objstore.Store.
func (s *Store) ReadBlob(ctx context.Context, id oid.OID) ([]byte, error) {
	out, err := s.cmd(ctx, "cat-file", "blob", id.String()).Output()
	if err != nil {
		return nil, notFoundOr(err)
	}
	return out, nil
}

// WriteBlob implements objstore.Store.
func (s *Store) WriteBlob(ctx context.Context, content []byte) (oid.OID, error) {
	out, err := s.cmd(ctx, "hash-object", "-w", "-t", "blob", "--stdin").SetStdin(content).OneLine()
	if err != nil {
		return oid.Zero, &objstore.IOError{Op: "write-blob", Err: err}
	}
	return oid.New(out), nil
}

// ReadTree implements objstore.Store. Entry order follows `git
// ls-tree`'s output order, which is the on-disk tree order — the
// engine must not (and does not) re-sort it.
func (s *Store) ReadTree(ctx context.Context, id oid.OID) ([]objstore.Entry, error) {
	out, err := s.cmd(ctx, "ls-tree", id.String()).Output()
	if err != nil {
		return nil, notFoundOr(err)
	}
	var entries []objstore.Entry
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		e, err := parseLsTreeLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", objstore.ErrCorrupt, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, &objstore.IOError{Op: "read-tree", Err: err}
	}
	return entries, nil
}

// parseLsTreeLine parses one NUL-free `git ls-tree` record:
// "<mode> <type> <oid>\t<name>".
func parseLsTreeLine(line string) (objstore.Entry, error) {
	tab := strings.IndexByte(line, '\t')
	if tab < 0 {
		return objstore.Entry{}, fmt.Errorf("malformed ls-tree line %q", line)
	}
	fields := strings.SplitN(line[:tab], " ", 3)
	if len(fields) != 3 {
		return objstore.Entry{}, fmt.Errorf("malformed ls-tree line %q", line)
	}
	mode, err := filemode.Parse(fields[0])
	if err != nil {
		return objstore.Entry{}, err
	}
	return objstore.Entry{
		Mode: mode,
		Kind: kindFromString(fields[1]),
		OID:  oid.New(fields[2]),
		Name: line[tab+1:],
	}, nil
}

// WriteTree implements objstore.Store via `git mktree`, which accepts
// entries in the exact order given on stdin and serializes them as
// one tree object (spec §4.5 step 4: "write a new tree").
func (s *Store) WriteTree(ctx context.Context, entries []objstore.Entry) (oid.OID, error) {
	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s %s %s\t%s\x00", e.Mode.String(), e.Kind.String(), e.OID.String(), e.Name)
	}
	out, err := s.cmd(ctx, "mktree", "-z").SetStdin(buf.Bytes()).OneLine()
	if err != nil {
		return oid.Zero, &objstore.IOError{Op: "write-tree", Err: err}
	}
	return oid.New(out), nil
}

// ReadCommit implements objstore.Store.
func (s *Store) ReadCommit(ctx context.Context, id oid.OID) (*objstore.CommitObject, error) {
	out, err := s.cmd(ctx, "cat-file", "commit", id.String()).Output()
	if err != nil {
		return nil, notFoundOr(err)
	}
	return parseCommit(out)
}

// CreateCommit implements objstore.Store via `git commit-tree`.
func (s *Store) CreateCommit(ctx context.Context, author, committer objstore.Signature, message string, tree oid.OID, parents []oid.OID) (oid.OID, error) {
	args := []string{"-t", tree.String()}
	for _, p := range parents {
		args = append(args, "-p", p.String())
	}
	env := append([]string{}, s.env...)
	env = append(env,
		"GIT_AUTHOR_NAME="+author.Name, "GIT_AUTHOR_EMAIL="+author.Email, "GIT_AUTHOR_DATE="+formatWhen(author.When),
		"GIT_COMMITTER_NAME="+committer.Name, "GIT_COMMITTER_EMAIL="+committer.Email, "GIT_COMMITTER_DATE="+formatWhen(committer.When),
	)
	c := command.New(ctx, "", env, "git", append([]string{"--git-dir", s.gitDir, "commit-tree"}, args...)...)
	out, err := c.SetStdin([]byte(message)).OneLine()
	if err != nil {
		return oid.Zero, &objstore.IOError{Op: "create-commit", Err: err}
	}
	return oid.New(out), nil
}

// ReadTag implements objstore.Store.
func (s *Store) ReadTag(ctx context.Context, id oid.OID) (*objstore.TagObject, error) {
	out, err := s.cmd(ctx, "cat-file", "tag", id.String()).Output()
	if err != nil {
		return nil, notFoundOr(err)
	}
	return parseTag(out)
}

// CreateTag implements objstore.Store via `git hash-object -w -t tag`.
func (s *Store) CreateTag(ctx context.Context, name string, target oid.OID, targetKind oid.Kind, tagger objstore.Signature, message string) (oid.OID, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\ntype %s\ntag %s\ntagger %s\n\n%s", target.String(), targetKind.String(), name, formatSignature(tagger), message)
	out, err := s.cmd(ctx, "hash-object", "-w", "-t", "tag", "--stdin").SetStdin(buf.Bytes()).OneLine()
	if err != nil {
		return oid.Zero, &objstore.IOError{Op: "create-tag", Err: err}
	}
	return oid.New(out), nil
}

// ResolveRef implements objstore.Store.
func (s *Store) ResolveRef(ctx context.Context, name string) (oid.OID, error) {
	out, err := s.cmd(ctx, "rev-parse", "--verify", name).OneLine()
	if err != nil {
		return oid.Zero, notFoundOr(err)
	}
	return oid.New(out), nil
}

// UpdateRef implements objstore.Store via `git update-ref`, which
// atomically verifies oldTarget before applying the new value.
func (s *Store) UpdateRef(ctx context.Context, name string, oldTarget, newTarget oid.OID) error {
	if err := s.cmd(ctx, "update-ref", name, newTarget.String(), oldTarget.String()).Run(); err != nil {
		return &objstore.IOError{Op: "update-ref", Err: err}
	}
	return nil
}

func notFoundOr(err error) error {
	if command.IsExternalCommandError(err) {
		return fmt.Errorf("%w: %v", objstore.ErrNotFound, err)
	}
	return &objstore.IOError{Op: "exec", Err: err}
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return strconv.FormatInt(t.Unix(), 10) + " " + t.Format("-0700")
}

func formatSignature(sig objstore.Signature) string {
	return fmt.Sprintf("%s <%s> %s", sig.Name, sig.Email, formatWhen(sig.When))
}
