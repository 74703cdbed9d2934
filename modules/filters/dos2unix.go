package filters

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/coldfix/git-filter-tree/modules/oid"
	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/rewrite"
)

// trailingWS matches a non-newline whitespace byte immediately
// followed by a newline, the same br'[^\S\n]\n' pattern
// original_source/git_filter_tree/dos2unix.py uses to detect trailing
// whitespace worth stripping.
var trailingWS = regexp.MustCompile(`[^\S\n]\n`)

// Dos2Unix converts matching files to Unix line endings and strips
// trailing whitespace, grounded on
// original_source/git_filter_tree/dos2unix.py.
type Dos2Unix struct {
	store objstore.Store
	ext   string
}

// NewDos2Unix builds a Dos2Unix filter that only touches files whose
// name ends in ext (e.g. ".txt").
func NewDos2Unix(store objstore.Store, ext string) *Dos2Unix {
	return &Dos2Unix{store: store, ext: ext}
}

func (*Dos2Unix) Name() string { return "dos2unix" }

// Depends keys on (oid, name, mode): the rewrite only looks at the
// blob's own content and name (dos2unix.py's comment verbatim).
func (d *Dos2Unix) Depends(e objstore.Entry) rewrite.Key {
	return rewrite.NameKey{OID: e.OID, Name: e.Name, Mode: e.Mode}
}

// RewriteFile normalizes line endings on a matching file, leaving
// non-matching entries untouched.
func (d *Dos2Unix) RewriteFile(ctx context.Context, e objstore.Entry) ([]objstore.Entry, error) {
	if !strings.HasSuffix(e.Name, d.ext) {
		return []objstore.Entry{e}, nil
	}
	newOID, err := d.convertToUnix(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("dos2unix: %q: %w", e.Path, err)
	}
	e.OID = newOID
	return []objstore.Entry{e}, nil
}

func (d *Dos2Unix) convertToUnix(ctx context.Context, e objstore.Entry) (oid.OID, error) {
	text, err := d.store.ReadBlob(ctx, e.OID)
	if err != nil {
		return e.OID, err
	}
	if len(text) == 0 {
		return e.OID, nil
	}
	if bytes.HasSuffix(text, []byte("\n")) && !bytes.HasSuffix(text, []byte("\n\n")) && !trailingWS.Match(text) {
		return e.OID, nil
	}
	lines := bytes.Split(text, []byte("\n"))
	// A trailing "\n" produces one empty trailing element from Split;
	// drop any further empty (whitespace-only once trimmed) lines at
	// the end, the same as dos2unix.py's while-pop loop.
	for len(lines) > 0 && len(bytes.TrimRight(lines[len(lines)-1], " \t\r")) == 0 {
		lines = lines[:len(lines)-1]
	}
	var out bytes.Buffer
	if len(lines) > 0 {
		for i, l := range lines {
			if i > 0 {
				out.WriteByte('\n')
			}
			out.Write(bytes.TrimRight(l, " \t\r"))
		}
		out.WriteByte('\n')
	}
	return d.store.WriteBlob(ctx, out.Bytes())
}
