package filters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/rewrite"
)

// Decompress unzips matching files in history, grounded on
// original_source/git_filter_tree/unpack.py, generalized from the
// original's single EXT/PROG pair (piped through an external gunzip)
// to a small extension -> decoder table backed by
// github.com/klauspost/compress, the same compression dependency
// antgroup-hugescm wires in for its own object transfer codecs.
type Decompress struct {
	store objstore.Store
	ext   string
	codec string
}

// NewDecompress builds a Decompress filter over files whose name ends
// in ext, decoded with the named codec ("gzip" or "zstd").
func NewDecompress(store objstore.Store, ext, codec string) *Decompress {
	return &Decompress{store: store, ext: ext, codec: codec}
}

func (*Decompress) Name() string { return "unpack" }

// Depends keys on (oid, name, mode): whether an entry is decompressed,
// and the name it is emitted under, depend on its own name as well as
// its bytes, but never on where it lives.
func (d *Decompress) Depends(e objstore.Entry) rewrite.Key {
	return rewrite.NameKey{OID: e.OID, Name: e.Name, Mode: e.Mode}
}

// RewriteFile decompresses a matching file's content and strips its
// compression-format extension from the name.
func (d *Decompress) RewriteFile(ctx context.Context, e objstore.Entry) ([]objstore.Entry, error) {
	if !strings.HasSuffix(e.Name, d.ext) {
		return []objstore.Entry{e}, nil
	}
	raw, err := d.store.ReadBlob(ctx, e.OID)
	if err != nil {
		return nil, fmt.Errorf("unpack: read %q: %w", e.Path, err)
	}
	plain, err := d.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("unpack: decode %q: %w", e.Path, err)
	}
	newOID, err := d.store.WriteBlob(ctx, plain)
	if err != nil {
		return nil, fmt.Errorf("unpack: write %q: %w", e.Path, err)
	}
	e.OID = newOID
	e.Name = strings.TrimSuffix(e.Name, d.ext)
	return []objstore.Entry{e}, nil
}

func (d *Decompress) decode(raw []byte) ([]byte, error) {
	switch d.codec {
	case "gzip":
		r, err := kgzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "zstd":
		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return io.ReadAll(dec)
	default:
		return nil, fmt.Errorf("unknown codec %q", d.codec)
	}
}
