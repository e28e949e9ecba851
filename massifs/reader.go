package massifs

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/datatrails/go-datatrails-sequencer/mmr"
)

var (
	ErrMassifTooShort    = errors.New("massifs: blob is shorter than its own layout")
	ErrNodeNotInMassif   = errors.New("massifs: mmr index is not covered by this massif or its peak stack")
	ErrMassifHeaderMismatch = errors.New("massifs: massif header does not match the requested identity")
)

// Massif is a decoded view over one massif blob: the fixed header plus
// enough of the layout to resolve individual 32 byte node values, either
// from the log data region or from the trailing peak stack carried over
// from earlier massifs.
type Massif struct {
	Start    MassifStart
	Layout   Layout
	data     []byte
	peakMap  map[uint64]int
}

// NewMassif decodes the header of a massif blob and validates it is large
// enough to hold its own layout.
func NewMassif(data []byte) (*Massif, error) {
	start, err := DecodeMassifStart(data)
	if err != nil {
		return nil, err
	}
	layout, err := NewLayout(start.MassifHeight)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) < layout.TotalBytes {
		return nil, fmt.Errorf("%w: have %d want %d", ErrMassifTooShort, len(data), layout.TotalBytes)
	}
	return &Massif{
		Start:   start,
		Layout:  layout,
		data:    data,
		peakMap: mmr.PeakStackMapForMassif(start.MassifHeight, start.FirstIndex),
	}, nil
}

// CheckIdentity confirms the decoded header matches the massif a caller
// expected to open, per spec.md's receipt assembly step 5.
func (m *Massif) CheckIdentity(massifHeight uint8, massifIndex uint32) error {
	if m.Start.MassifHeight != massifHeight || m.Start.MassifIndex != massifIndex {
		return ErrMassifHeaderMismatch
	}
	return nil
}

// Get resolves the 32 byte node value at mmr index i: local nodes (those at
// or after this massif's first index) come from the log data region;
// earlier accumulator peaks referenced by this massif's construction come
// from the fixed peak stack region. It implements mmr.IndexStoreGetter.
func (m *Massif) Get(i uint64) ([]byte, error) {
	if i >= m.Start.FirstIndex {
		local := i - m.Start.FirstIndex
		off := m.Layout.LogDataNodeOffset(local)
		if off+ValueBytes > uint64(len(m.data)) {
			return nil, fmt.Errorf("%w: mmr index %d", ErrNodeNotInMassif, i)
		}
		return m.data[off : off+ValueBytes], nil
	}
	pos, ok := m.peakMap[i]
	if !ok {
		return nil, fmt.Errorf("%w: mmr index %d", ErrNodeNotInMassif, i)
	}
	off := m.Layout.PeakStackOffset + uint64(pos)*ValueBytes
	return m.data[off : off+ValueBytes], nil
}

// LeafIDTimestamp reads the idtimestamp stored for leafIndex (global, across
// the whole log) in this massif's leaf table. Callers must first check
// leafIndex actually falls within this massif (massifIndexFromMMRIndex).
func (m *Massif) LeafIDTimestamp(leafIndex uint64) (uint64, error) {
	leavesPerMassif := mmr.LeavesPerMassif(m.Start.MassifHeight)
	ordinal := leafIndex % leavesPerMassif
	off := m.Layout.LeafTableOffset + leafRecordOffset(uint32(ordinal))
	if off+8 > uint64(len(m.data)) {
		return 0, fmt.Errorf("%w: leaf ordinal %d", ErrNodeNotInMassif, ordinal)
	}
	return binary.BigEndian.Uint64(m.data[off : off+8]), nil
}

// InclusionProof builds the proof path from mmrIndex up to the accumulator
// peak covering it, per spec.md §4.6 step 6 / §4.7 inclusionProof.
func (m *Massif) InclusionProof(mmrSize uint64, mmrIndex uint64) ([][]byte, error) {
	return mmr.InclusionProof(m, mmrSize-1, mmrIndex)
}
