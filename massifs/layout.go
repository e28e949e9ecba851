// Package massifs implements the byte-exact massif blob format: the fixed
// header, the v2 index region (reserved for bloom filters over a trie
// index, built and queried by the ranger), and the log data region holding
// the raw MMR node hashes for one height-bounded chunk of a log's tree.
package massifs

import (
	"fmt"

	"github.com/datatrails/go-datatrails-sequencer/mmr"
)

const (
	// ValueBytes is the width of a log data record: one MMR node hash.
	ValueBytes = 32

	// ReservedHeaderSlots is the number of 32B slots reserved after the
	// fixed header record, for future use.
	ReservedHeaderSlots = 7

	// StartHeaderSize is the fixed header region: the MassifStart record
	// plus its reserved slots.
	StartHeaderSize = ValueBytes * (1 + ReservedHeaderSlots) // 256

	// IndexHeaderSize is the fixed-size index header following the massif
	// start header.
	IndexHeaderSize = 32

	// BloomBitsPerElement is the 'bits per leaf' sizing factor used for
	// the four parallel bloom filters in the index region.
	BloomBitsPerElement = 10

	// PeakStackSlots is the fixed capacity of the peak stack region: one
	// slot per bit of a uint64 massif index is sufficient headroom for any
	// log whose massif count fits in 64 bits.
	PeakStackSlots = 64
	// PeakStackBytes is the fixed byte size of the peak stack region.
	PeakStackBytes = PeakStackSlots * ValueBytes // 2048
)

// Layout describes the byte offsets and region sizes of a massif blob of a
// given height. Every region boundary is computable from massifHeight
// alone: massif blobs of the same height are always byte-identical in
// shape, differing only in content.
type Layout struct {
	MassifHeight uint8

	LeafCount uint64 // N := 1 << (h-1)

	StartHeaderOffset uint64
	IndexHeaderOffset uint64

	BloomOffset uint64
	BloomBytes  uint64

	FrontierOffset uint64
	FrontierBytes  uint64

	LeafTableOffset uint64
	LeafTableBytes  uint64

	NodeStoreOffset uint64
	NodeStoreBytes  uint64

	PeakStackOffset uint64

	LogDataOffset uint64
	LogDataBytes  uint64

	TotalBytes uint64
}

// NewLayout computes the byte layout for a massif of the given height, per
// the fixed-width regions: start header, index header, bloom filters, trie
// frontier, leaf table, node store, peak stack, then the raw log data.
func NewLayout(massifHeight uint8) (Layout, error) {
	if massifHeight < 1 {
		return Layout{}, fmt.Errorf("massifs: massif height must be >= 1, got %d", massifHeight)
	}

	leafCount := uint64(1) << (massifHeight - 1)

	if err := checkBloomBitsPerElement(BloomBitsPerElement); err != nil {
		return Layout{}, err
	}
	mBits64 := bloomMBits(leafCount, BloomBitsPerElement)
	mBits := bloomMBitsSafeCast(mBits64)
	if mBits == 0 {
		return Layout{}, fmt.Errorf("massifs: bloom sizing overflow for massif height %d", massifHeight)
	}
	bitsetBytes := uint64(bloomBitsetBytes(mBits))
	bloomBytes := bitsetBytes * uint64(bloomFilters)

	if err := checkLeafCount(leafCount); err != nil {
		return Layout{}, err
	}

	l := Layout{
		MassifHeight: massifHeight,
		LeafCount:    leafCount,
	}

	l.StartHeaderOffset = 0
	l.IndexHeaderOffset = l.StartHeaderOffset + StartHeaderSize
	l.BloomOffset = l.IndexHeaderOffset + IndexHeaderSize
	l.BloomBytes = bloomBytes
	l.FrontierOffset = l.BloomOffset + l.BloomBytes
	l.FrontierBytes = frontierStateV1Bytes
	l.LeafTableOffset = l.FrontierOffset + l.FrontierBytes
	l.LeafTableBytes = leafTableBytes(leafCount)
	l.NodeStoreOffset = l.LeafTableOffset + l.LeafTableBytes
	l.NodeStoreBytes = nodeStoreBytes(leafCount)
	l.PeakStackOffset = l.NodeStoreOffset + l.NodeStoreBytes

	l.LogDataOffset = l.PeakStackOffset + PeakStackBytes
	l.LogDataBytes = mmr.HeightIndexSize(uint64(massifHeight)-1) * ValueBytes
	l.TotalBytes = l.LogDataOffset + l.LogDataBytes

	return l, nil
}

// LogDataNodeOffset returns the byte offset of the node record for the mmr
// index i within the log data region local to this massif, where i is
// relative to the massif's own first index (i.e. i=0 is the first node
// committed by this massif).
func (l Layout) LogDataNodeOffset(localIndex uint64) uint64 {
	return l.LogDataOffset + localIndex*ValueBytes
}
