// Package oid defines the content-addressed object identifier used
// throughout the rewrite engine: an opaque hash naming a blob, tree,
// commit or tag object in the repository's object database.
//
// OID deliberately does not commit to a single hash algorithm: a real
// git object database may key objects by either SHA-1 (20 bytes) or
// SHA-256 (32 bytes) depending on repository format. Both are stored
// in the same fixed-width array; Size reports which one is in use.
package oid

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Algo identifies the hash algorithm an OID was produced with.
type Algo uint8

const (
	SHA1 Algo = iota
	SHA256
)

func (a Algo) size() int {
	if a == SHA256 {
		return 32
	}
	return 20
}

// OID is a content hash naming a stored object. The zero value is the
// "unset" OID (IsZero reports true); it never names a real object.
type OID struct {
	algo Algo
	b    [32]byte
}

// Zero is the unset OID.
var Zero OID

// New decodes a hex string into an OID. The algorithm is inferred from
// the decoded length: 20 bytes selects SHA1, 32 bytes selects SHA256.
// Invalid input decodes to the zero OID, mirroring the teacher's
// permissive NewHash (callers that need validation use NewEx).
func New(hexStr string) OID {
	o, _ := NewEx(hexStr)
	return o
}

// NewEx is the validating counterpart of New.
func NewEx(hexStr string) (OID, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return Zero, fmt.Errorf("oid: %q is not valid hex: %w", hexStr, err)
	}
	switch len(b) {
	case 20:
		var o OID
		o.algo = SHA1
		copy(o.b[:20], b)
		return o, nil
	case 32:
		var o OID
		o.algo = SHA256
		copy(o.b[:32], b)
		return o, nil
	default:
		return Zero, fmt.Errorf("oid: %q has unsupported length %d", hexStr, len(b))
	}
}

// FromBytes wraps a raw digest (20 or 32 bytes) as an OID.
func FromBytes(algo Algo, digest []byte) OID {
	var o OID
	o.algo = algo
	copy(o.b[:], digest)
	return o
}

// IsZero reports whether o is the unset OID.
func (o OID) IsZero() bool { return o == Zero }

// Algo reports the hash algorithm that produced o.
func (o OID) Algo() Algo { return o.algo }

// Bytes returns the raw digest bytes (length 20 or 32, per Algo).
func (o OID) Bytes() []byte {
	return append([]byte(nil), o.b[:o.algo.size()]...)
}

// String renders the OID as lowercase hex.
func (o OID) String() string {
	return hex.EncodeToString(o.b[:o.algo.size()])
}

func (o OID) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *OID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*o = Zero
		return nil
	}
	decoded, err := NewEx(s)
	if err != nil {
		return err
	}
	*o = decoded
	return nil
}

func (o OID) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *OID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*o = Zero
		return nil
	}
	decoded, err := NewEx(string(text))
	if err != nil {
		return err
	}
	*o = decoded
	return nil
}

// Valid reports whether s decodes to a well-formed OID of a supported
// length.
func Valid(s string) bool {
	_, err := NewEx(s)
	return err == nil
}

// Slice attaches sort.Interface to []OID in byte order, matching git's
// canonical tree-entry comparison order for raw hash bytes.
type Slice []OID

func (s Slice) Len() int      { return len(s) }
func (s Slice) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s Slice) Less(i, j int) bool {
	return bytes.Compare(s[i].b[:s[i].algo.size()], s[j].b[:s[j].algo.size()]) < 0
}

// Sort sorts a slice of OIDs in increasing byte order.
func Sort(s []OID) { sort.Sort(Slice(s)) }

// Kind identifies the type of object an OID names.
type Kind int8

const (
	// Unknown is the zero value; lookups that fail return this.
	Unknown Kind = iota
	Blob
	Tree
	Commit
	Tag
)

func (k Kind) String() string {
	switch k {
	case Blob:
		return "blob"
	case Tree:
		return "tree"
	case Commit:
		return "commit"
	case Tag:
		return "tag"
	default:
		return "unknown"
	}
}
