package blobcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFenceIndexExtractsFence(t *testing.T) {
	prefix := "logs/11111111-1111-1111-1111-111111111111/leaves/"
	name := prefix + "7/aabbcc"

	fence, ok := parseFenceIndex(prefix, name)
	require.True(t, ok)
	require.Equal(t, uint64(7), fence)
}

func TestParseFenceIndexRejectsShortOrMalformedNames(t *testing.T) {
	prefix := "logs/x/leaves/"

	_, ok := parseFenceIndex(prefix, prefix)
	require.False(t, ok)

	_, ok = parseFenceIndex(prefix, prefix+"not-a-number/abc")
	require.False(t, ok)
}
