// Command git-filter-tree is the thin CLI dispatcher of spec §6 — the
// one piece of the original git-filter-tree that spec.md explicitly
// marks out of scope ("the thin CLI dispatcher that selects a
// filter"). It is kept minimal on purpose: stdlib flag rather than a
// full CLI framework, since there is nothing here beyond "pick a
// filter, pick a root-selection mode, run the driver" for a framework
// to buy its keep on.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/coldfix/git-filter-tree/modules/filters"
	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/objstore/gitcli"
	"github.com/coldfix/git-filter-tree/modules/oid"
	"github.com/coldfix/git-filter-tree/modules/rewrite"
	"github.com/coldfix/git-filter-tree/pkg/progress"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logrus.Errorf("git-filter-tree: %v", err)
		if rewrite.IsStaleState(err) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("git-filter-tree", flag.ContinueOnError)
	gitDir := fs.String("git-dir", ".git", "path to the repository's git directory")
	concurrency := fs.Int64("j", int64(2*runtime.NumCPU()), "maximum concurrent blocking-I/O operations")
	rootMap := fs.String("root-map", "", "path to the root-map file (default: <git-dir>/filter-tree/root-map)")
	tagStrict := fs.Bool("strict-tags", false, "refuse to run if any root resolves to a tag object")
	quiet := fs.Bool("quiet", false, "suppress the progress line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: git-filter-tree [flags] <filter-name> [filter-args...] [-- <ref-spec>...]")
	}
	filterName := rest[0]
	filterArgs, refspecs := splitRefspecs(rest[1:])

	if *rootMap == "" {
		*rootMap = *gitDir + "/filter-tree/root-map"
	}
	if err := os.MkdirAll(strings.TrimSuffix(*rootMap, "/root-map"), 0755); err != nil {
		return fmt.Errorf("create root-map directory: %w", err)
	}

	store, err := gitcli.New(*gitDir)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}

	filter, err := buildFilter(filterName, filterArgs, store)
	if err != nil {
		return err
	}

	line := progress.NewRewriteLine(*quiet)
	sched := rewrite.NewScheduler(*concurrency, line.Update)
	tagPolicy := rewrite.TagConservative
	if *tagStrict {
		tagPolicy = rewrite.TagStrict
	}
	engine := rewrite.NewEngine(store, filter, sched, tagPolicy)

	ctx := context.Background()
	driver := rewrite.NewDriver(store, engine, sched, *rootMap, gitcli.NewWalker(*gitDir))

	if len(refspecs) == 0 {
		roots, err := readRootsFromStdin()
		if err != nil {
			return err
		}
		err = driver.RunFromRoots(ctx, roots)
		line.Done()
		return err
	}

	results, err := driver.RunFromRefs(ctx, refspecs, refUpdatesFor(refspecs))
	line.Done()
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Unchanged {
			logrus.Warnf("ref %q unchanged (%s)", r.Name, r.Old.String())
			continue
		}
		logrus.Infof("ref %q: %s -> %s", r.Name, r.Old.String(), r.New.String())
	}
	return nil
}

// splitRefspecs separates a filter's own positional arguments from the
// ref-specs following a literal "--" token (spec §6's CLI surface).
func splitRefspecs(args []string) (filterArgs, refspecs []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// refUpdatesFor treats every non-flag refspec token as both a
// rev-list starting point and a reference to retarget after rewriting
// — the common case of passing explicit branch names (e.g. `--
// refs/heads/main`).
func refUpdatesFor(refspecs []string) []rewrite.RefUpdate {
	var refs []rewrite.RefUpdate
	for _, r := range refspecs {
		if strings.HasPrefix(r, "-") {
			continue
		}
		refs = append(refs, rewrite.RefUpdate{Name: r})
	}
	return refs
}

func readRootsFromStdin() ([]oid.OID, error) {
	var roots []oid.OID
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		roots = append(roots, oid.New(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read roots from stdin: %w", err)
	}
	return roots, nil
}

func buildFilter(name string, args []string, store objstore.Store) (rewrite.Filter, error) {
	switch name {
	case "nop":
		return filters.NOP{}, nil
	case "rm":
		if len(args) == 0 {
			return nil, fmt.Errorf("rm: usage: rm PATH [PATH...]")
		}
		return filters.NewRemove(store, args...), nil
	case "unpack":
		ext, codec := ".gz", "gzip"
		if len(args) > 0 {
			ext = args[0]
		}
		if len(args) > 1 {
			codec = args[1]
		}
		return filters.NewDecompress(store, ext, codec), nil
	case "dos2unix":
		ext := ".txt"
		if len(args) > 0 {
			ext = args[0]
		}
		return filters.NewDos2Unix(store, ext), nil
	case "dir2mod":
		if len(args) < 3 {
			return nil, fmt.Errorf("dir2mod: usage: dir2mod TREEMAP FOLDER URL [NAME]")
		}
		name := ""
		if len(args) > 3 {
			name = args[3]
		}
		return filters.NewDir2Mod(store, args[0], args[1], args[2], name), nil
	default:
		return nil, fmt.Errorf("unknown filter %q", name)
	}
}
