package oid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSHA1(t *testing.T) {
	o := New("0123456789abcdef0123456789abcdef01234567")
	assert.False(t, o.IsZero())
	assert.Equal(t, SHA1, o.Algo())
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", o.String())
}

func TestNewSHA256(t *testing.T) {
	hex := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	o := New(hex)
	assert.False(t, o.IsZero())
	assert.Equal(t, SHA256, o.Algo())
	assert.Equal(t, hex, o.String())
}

func TestNewInvalidIsZero(t *testing.T) {
	assert.True(t, New("not-hex").IsZero())
	assert.True(t, New("abcd").IsZero())
}

func TestNewExRejectsInvalid(t *testing.T) {
	_, err := NewEx("zz")
	require.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	o := New("0123456789abcdef0123456789abcdef01234567")
	b, err := json.Marshal(o)
	require.NoError(t, err)

	var got OID
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, o, got)
}

func TestSort(t *testing.T) {
	a := New("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := New("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	s := []OID{b, a}
	Sort(s)
	assert.Equal(t, []OID{a, b}, s)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "blob", Blob.String())
	assert.Equal(t, "tree", Tree.String())
	assert.Equal(t, "commit", Commit.String())
	assert.Equal(t, "tag", Tag.String())
	assert.Equal(t, "unknown", Unknown.String())
}
