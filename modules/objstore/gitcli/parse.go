package gitcli

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/oid"
)

// parseCommit decodes the raw output of `git cat-file commit <oid>`:
// a run of header lines ("tree", "parent"*, "author", "committer", ...)
// followed by a blank line and the free-form commit message. Adapted
// from the header/body split in antgroup-hugescm's object.Commit
// decoder.
func parseCommit(raw []byte) (*objstore.CommitObject, error) {
	header, body, ok := bytes.Cut(raw, []byte("\n\n"))
	if !ok {
		header, body = raw, nil
	}
	c := &objstore.CommitObject{Message: string(body)}
	sc := bufio.NewScanner(bytes.NewReader(header))
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		line := sc.Text()
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch key {
		case "tree":
			c.Tree = oid.New(value)
		case "parent":
			c.Parents = append(c.Parents, oid.New(value))
		case "author":
			c.Author = decodeSignature(value)
		case "committer":
			c.Committer = decodeSignature(value)
		}
	}
	if c.Tree.IsZero() {
		return nil, fmt.Errorf("%w: commit missing tree header", objstore.ErrCorrupt)
	}
	return c, nil
}

// parseTag decodes the raw output of `git cat-file tag <oid>`.
func parseTag(raw []byte) (*objstore.TagObject, error) {
	header, body, ok := bytes.Cut(raw, []byte("\n\n"))
	if !ok {
		header, body = raw, nil
	}
	t := &objstore.TagObject{Message: string(body)}
	sc := bufio.NewScanner(bytes.NewReader(header))
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		line := sc.Text()
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch key {
		case "object":
			t.Target = oid.New(value)
		case "type":
			t.TargetKind = kindFromString(value)
		case "tag":
			t.Name = value
		case "tagger":
			t.Tagger = decodeSignature(value)
		}
	}
	if t.Target.IsZero() {
		return nil, fmt.Errorf("%w: tag missing object header", objstore.ErrCorrupt)
	}
	return t, nil
}

// decodeSignature parses "Name <email> <unix-seconds> <+-ZZZZ>",
// tolerating a missing or malformed timestamp the way the teacher's
// Signature.Decode does (it simply leaves When zero).
func decodeSignature(s string) objstore.Signature {
	open := strings.LastIndexByte(s, '<')
	closeIdx := strings.LastIndexByte(s, '>')
	if open < 0 || closeIdx < 0 || closeIdx < open {
		return objstore.Signature{Name: strings.TrimSpace(s)}
	}
	sig := objstore.Signature{
		Name:  strings.TrimSpace(s[:open]),
		Email: s[open+1 : closeIdx],
	}
	rest := strings.TrimSpace(s[closeIdx+1:])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return sig
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return sig
	}
	when := time.Unix(secs, 0).UTC()
	if len(fields) > 1 && len(fields[1]) == 5 {
		if tz, ok := parseTimezone(fields[1]); ok {
			when = when.In(tz)
		}
	}
	sig.When = when
	return sig
}

func parseTimezone(s string) (*time.Location, bool) {
	sign := int64(1)
	if s[0] == '-' {
		sign = -1
	}
	hours, err1 := strconv.ParseInt(s[1:3], 10, 64)
	mins, err2 := strconv.ParseInt(s[3:5], 10, 64)
	if err1 != nil || err2 != nil {
		return nil, false
	}
	return time.FixedZone("", int(sign*(hours*3600+mins*60))), true
}
