package massifs

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// EntryIDBytes is the fixed width of an encoded entry id: an 8 byte
// idtimestamp followed by an 8 byte mmr index.
const EntryIDBytes = 16

// EntryID identifies a single sequenced leaf: the idtimestamp assigned at
// enqueue time, and the mmr index it was finally committed to.
type EntryID struct {
	IDTimestamp uint64
	MMRIndex    uint64
}

// Encode renders the entry id as 32 lowercase hex characters:
// hex(idtimestamp_be8 || mmrIndex_be8).
func (e EntryID) Encode() string {
	var b [EntryIDBytes]byte
	binary.BigEndian.PutUint64(b[0:8], e.IDTimestamp)
	binary.BigEndian.PutUint64(b[8:16], e.MMRIndex)
	return hex.EncodeToString(b[:])
}

// DecodeEntryID parses the 32 character hex encoding produced by Encode.
func DecodeEntryID(s string) (EntryID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return EntryID{}, fmt.Errorf("massifs: bad entry id encoding: %w", err)
	}
	if len(b) != EntryIDBytes {
		return EntryID{}, fmt.Errorf("massifs: entry id must decode to %d bytes, got %d", EntryIDBytes, len(b))
	}
	return EntryID{
		IDTimestamp: binary.BigEndian.Uint64(b[0:8]),
		MMRIndex:    binary.BigEndian.Uint64(b[8:16]),
	}, nil
}
