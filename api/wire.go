// Package api implements the HTTP surface: the CBOR ranger endpoints
// (spec.md §4.3), the SCRAPI-style registration/status/receipt endpoints
// (§4.4-§4.6), and the inbound blob cache's object-storage-facing half
// lives in blobcache. Handlers never embed business logic beyond request
// decoding, routing to a queue shard or store, and response encoding;
// everything else lives in queue/ and massifs/.
package api

import (
	"github.com/fxamacker/cbor/v2"
)

// wireEntry mirrors one entry in the pull response's positional encoding:
// [contentHash, extra0, extra1, extra2, extra3].
type wireEntry struct {
	_           struct{} `cbor:",toarray"`
	ContentHash []byte
	Extra0      []byte
	Extra1      []byte
	Extra2      []byte
	Extra3      []byte
}

// wireLogGroup mirrors [logId, seqLo, seqHi, entries].
type wireLogGroup struct {
	_       struct{} `cbor:",toarray"`
	LogID   []byte
	SeqLo   uint64
	SeqHi   uint64
	Entries []wireEntry
}

// wirePullResponse mirrors spec.md §6's positional pull response array.
type wirePullResponse struct {
	_           struct{} `cbor:",toarray"`
	Version     uint64
	LeaseExpiry uint64
	LogGroups   []wireLogGroup
}

type pullRequest struct {
	PollerID     string `cbor:"pollerId"`
	BatchSize    uint64 `cbor:"batchSize"`
	VisibilityMs uint64 `cbor:"visibilityMs"`
}

type ackRequest struct {
	LogID          []byte `cbor:"logId"`
	SeqLo          uint64 `cbor:"seqLo"`
	Limit          uint64 `cbor:"limit"`
	FirstLeafIndex uint64 `cbor:"firstLeafIndex"`
	MassifHeight   uint64 `cbor:"massifHeight"`
}

type ackResponse struct {
	Acked uint64 `cbor:"acked"`
}

var cborEncMode = func() cbor.EncMode {
	m, err := cbor.EncOptions{}.EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()
