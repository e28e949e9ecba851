package massifs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S1/P9 — entry id round trips through its hex encoding.
func TestEntryIDRoundTrip(t *testing.T) {
	want := EntryID{IDTimestamp: 0x0102030405060708, MMRIndex: 0x0A0B0C0D0E0F1011}
	encoded := want.Encode()
	require.Len(t, encoded, EntryIDBytes*2)

	got, err := DecodeEntryID(encoded)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeEntryIDRejectsBadLength(t *testing.T) {
	_, err := DecodeEntryID("aabb")
	require.Error(t, err)
}

func TestDecodeEntryIDRejectsNonHex(t *testing.T) {
	_, err := DecodeEntryID("not-hex-------------------------")
	require.Error(t, err)
}
