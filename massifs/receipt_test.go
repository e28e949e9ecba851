package massifs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S6 — end to end: sign a checkpoint over a single-peak massif, then
// assemble a receipt for one of its leaves and confirm it decodes.
func TestAssembleReceiptEndToEnd(t *testing.T) {
	n0 := bytesOf(0x01)
	n1 := bytesOf(0x02)
	n2 := bytesOf(0x03) // the one peak for mmrSize 3
	data := buildTestMassif(t, [3][]byte{n0, n1, n2}, [2]uint64{10, 20})
	massif, err := NewMassif(data)
	require.NoError(t, err)

	signer, key := testSigner(t)
	codec, err := NewCheckpointCodec()
	require.NoError(t, err)
	rs := NewRootSigner("sequencer-test", codec)

	state := MMRState{
		MMRSize:         3,
		Peaks:           [][]byte{n2},
		Timestamp:       1000,
		IDTimestamp:     20,
		CommitmentEpoch: 1,
	}
	signed, err := rs.Sign1(signer, "kid-1", &key.PublicKey, "log-1", state, nil)
	require.NoError(t, err)

	checkpoint, err := DecodeCheckpoint(signed)
	require.NoError(t, err)
	peakReceipts, err := PeakReceipts(checkpoint.Msg)
	require.NoError(t, err)

	receipt, err := AssembleReceipt(checkpoint.State, peakReceipts, massif, 0)
	require.NoError(t, err)
	require.NotEmpty(t, receipt)
}

func TestAssembleReceiptRejectsUncoveredIndex(t *testing.T) {
	n0, n1, n2 := bytesOf(1), bytesOf(2), bytesOf(3)
	data := buildTestMassif(t, [3][]byte{n0, n1, n2}, [2]uint64{10, 20})
	massif, err := NewMassif(data)
	require.NoError(t, err)

	state := MMRState{MMRSize: 3}
	_, err = AssembleReceipt(state, nil, massif, 5)
	require.ErrorIs(t, err, ErrCheckpointTooOld)
}
