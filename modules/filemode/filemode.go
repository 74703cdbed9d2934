// Package filemode models the POSIX-like file modes carried on
// directory entries, including the special submodule-link mode (§3,
// Directory Entry, of the rewrite-engine specification).
package filemode

import "strconv"

// FileMode is a POSIX-like mode as stored in a tree entry.
type FileMode uint32

const (
	sIFMT      FileMode = 0170000
	sIFLNK     FileMode = 0120000
	sIFDIR     FileMode = 0040000
	sIFGITLINK FileMode = 0160000
	sIFREG     FileMode = 0100000
)

const (
	// Dir marks a tree entry referencing another tree.
	Dir FileMode = sIFDIR
	// Regular is a plain, non-executable file.
	Regular FileMode = sIFREG | 0644
	// Executable is a file with the executable bit set.
	Executable FileMode = sIFREG | 0755
	// Symlink marks a blob whose content is a symlink target.
	Symlink FileMode = sIFLNK
	// Submodule marks an entry whose OID names a commit in another
	// repository rather than a blob or tree (glossary: "Submodule
	// link").
	Submodule FileMode = sIFGITLINK
)

// IsDir reports whether m names a tree entry.
func (m FileMode) IsDir() bool { return m&sIFMT == sIFDIR }

// IsRegular reports whether m names an ordinary (non-symlink) blob.
func (m FileMode) IsRegular() bool { return m&sIFMT == sIFREG }

// IsSymlink reports whether m names a symlink blob.
func (m FileMode) IsSymlink() bool { return m&sIFMT == sIFLNK }

// IsSubmodule reports whether m is the submodule-link mode.
func (m FileMode) IsSubmodule() bool { return m&sIFMT == sIFGITLINK }

// IsExecutable reports whether the owner-executable bit is set on a
// regular file.
func (m FileMode) IsExecutable() bool {
	return m.IsRegular() && m&0111 != 0
}

// String renders the mode the way git's plumbing does: six octal
// digits, e.g. "100644", "040000", "160000".
func (m FileMode) String() string {
	s := strconv.FormatUint(uint64(m), 8)
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}

// Parse parses a six (or fewer) digit octal mode string as produced by
// `git ls-tree` / `git mktree`.
func Parse(s string) (FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	return FileMode(v), nil
}
