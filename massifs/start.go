package massifs

import (
	"encoding/binary"
	"errors"

	"github.com/datatrails/go-datatrails-sequencer/mmr"
)

// MassifStart layout, within the first 32 byte record of StartHeaderOffset:
//
//	| reserved | lastID  | reserved |  version | epoch   | massif height | massif index |
//	| 0      7 | 8     15| 16    20 | 21    22 | 23   26 | 27            | 28        31 |
//	bytes     8 |    8    |     5    |     2    |    4    |       1       |      4       |
const (
	startKeyLastIDFirstByte = 8
	startKeyLastIDEnd       = startKeyLastIDFirstByte + 8

	startKeyVersionFirstByte = 21
	startKeyVersionEnd       = startKeyVersionFirstByte + 2

	startKeyEpochFirstByte = startKeyVersionEnd
	startKeyEpochEnd       = startKeyEpochFirstByte + 4

	startKeyMassifHeightFirstByte = startKeyEpochEnd

	startKeyMassifIndexFirstByte = startKeyMassifHeightFirstByte + 1
	startKeyMassifIndexEnd       = startKeyMassifIndexFirstByte + 4

	// MassifCurrentVersion is the current on-disk version of the start header.
	MassifCurrentVersion = uint16(0)
)

var ErrMassifStartTooShort = errors.New("massifs: massif start record is too short")

// MassifStart is the fixed-layout header record written at byte 0 of every
// massif blob.
type MassifStart struct {
	Version         uint16
	CommitmentEpoch uint32
	MassifHeight    uint8
	MassifIndex     uint32
	FirstIndex      uint64
	LastID          uint64
	PeakStackLen    uint64
}

// NewMassifStart builds the header for a freshly opened massif.
func NewMassifStart(lastID uint64, commitmentEpoch uint32, massifHeight uint8, massifIndex uint32) MassifStart {
	firstIndex := mmr.MassifFirstLeaf(massifHeight, uint64(massifIndex))
	return MassifStart{
		Version:         MassifCurrentVersion,
		CommitmentEpoch: commitmentEpoch,
		MassifHeight:    massifHeight,
		MassifIndex:     massifIndex,
		FirstIndex:      firstIndex,
		LastID:          lastID,
		PeakStackLen:    mmr.LeafMinusSpurSum(uint64(massifIndex)),
	}
}

// Encode renders the header into the first StartHeaderSize bytes of a
// massif blob. Only the first 32 byte record carries header fields; the
// remaining ReservedHeaderSlots records are zeroed.
func (ms MassifStart) Encode() []byte {
	start := make([]byte, StartHeaderSize)
	binary.BigEndian.PutUint64(start[startKeyLastIDFirstByte:startKeyLastIDEnd], ms.LastID)
	binary.BigEndian.PutUint16(start[startKeyVersionFirstByte:startKeyVersionEnd], ms.Version)
	binary.BigEndian.PutUint32(start[startKeyEpochFirstByte:startKeyEpochEnd], ms.CommitmentEpoch)
	start[startKeyMassifHeightFirstByte] = ms.MassifHeight
	binary.BigEndian.PutUint32(start[startKeyMassifIndexFirstByte:startKeyMassifIndexEnd], ms.MassifIndex)
	return start
}

// DecodeMassifStart parses the header record at the front of a massif blob.
func DecodeMassifStart(b []byte) (MassifStart, error) {
	if len(b) < ValueBytes {
		return MassifStart{}, ErrMassifStartTooShort
	}

	var ms MassifStart
	ms.LastID = binary.BigEndian.Uint64(b[startKeyLastIDFirstByte:startKeyLastIDEnd])
	ms.Version = binary.BigEndian.Uint16(b[startKeyVersionFirstByte:startKeyVersionEnd])
	ms.CommitmentEpoch = binary.BigEndian.Uint32(b[startKeyEpochFirstByte:startKeyEpochEnd])
	ms.MassifHeight = b[startKeyMassifHeightFirstByte]
	ms.MassifIndex = binary.BigEndian.Uint32(b[startKeyMassifIndexFirstByte:startKeyMassifIndexEnd])
	ms.FirstIndex = mmr.MassifFirstLeaf(ms.MassifHeight, uint64(ms.MassifIndex))
	ms.PeakStackLen = mmr.LeafMinusSpurSum(uint64(ms.MassifIndex))
	return ms, nil
}
