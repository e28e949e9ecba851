package massifs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildTestMassif lays out a minimal, valid massif of height 2 (2 leaves, 3
// mmr nodes) with the given node values and leaf idtimestamps, ready to be
// read back by NewMassif.
func buildTestMassif(t *testing.T, nodes [3][]byte, idtimestamps [2]uint64) []byte {
	t.Helper()
	layout, err := NewLayout(2)
	require.NoError(t, err)

	data := make([]byte, layout.TotalBytes)
	start := NewMassifStart(0, 1, 2, 0)
	copy(data[:StartHeaderSize], start.Encode())

	for i, id := range idtimestamps {
		off := layout.LeafTableOffset + leafRecordOffset(uint32(i))
		binary.BigEndian.PutUint64(data[off:off+8], id)
	}

	for i, node := range nodes {
		off := layout.LogDataNodeOffset(uint64(i))
		copy(data[off:off+ValueBytes], node)
	}

	return data
}

func TestMassifGetResolvesLogDataNodes(t *testing.T) {
	n0 := bytesOf(0x01)
	n1 := bytesOf(0x02)
	n2 := bytesOf(0x03)
	data := buildTestMassif(t, [3][]byte{n0, n1, n2}, [2]uint64{100, 200})

	m, err := NewMassif(data)
	require.NoError(t, err)
	require.NoError(t, m.CheckIdentity(2, 0))

	got0, err := m.Get(0)
	require.NoError(t, err)
	require.Equal(t, n0, got0)

	got2, err := m.Get(2)
	require.NoError(t, err)
	require.Equal(t, n2, got2)
}

func TestMassifGetRejectsOutOfRangeIndex(t *testing.T) {
	data := buildTestMassif(t, [3][]byte{bytesOf(1), bytesOf(2), bytesOf(3)}, [2]uint64{1, 2})
	m, err := NewMassif(data)
	require.NoError(t, err)

	_, err = m.Get(99)
	require.Error(t, err)
}

func TestMassifLeafIDTimestamp(t *testing.T) {
	data := buildTestMassif(t, [3][]byte{bytesOf(1), bytesOf(2), bytesOf(3)}, [2]uint64{111, 222})
	m, err := NewMassif(data)
	require.NoError(t, err)

	got, err := m.LeafIDTimestamp(0)
	require.NoError(t, err)
	require.Equal(t, uint64(111), got)

	got, err = m.LeafIDTimestamp(1)
	require.NoError(t, err)
	require.Equal(t, uint64(222), got)
}

func TestMassifInclusionProofForSinglePeakMassif(t *testing.T) {
	n0 := bytesOf(0x01)
	n1 := bytesOf(0x02)
	n2 := bytesOf(0x03)
	data := buildTestMassif(t, [3][]byte{n0, n1, n2}, [2]uint64{1, 2})
	m, err := NewMassif(data)
	require.NoError(t, err)

	proof, err := m.InclusionProof(3, 0)
	require.NoError(t, err)
	require.Equal(t, [][]byte{n1}, proof)
}

func TestMassifCheckIdentityMismatch(t *testing.T) {
	data := buildTestMassif(t, [3][]byte{bytesOf(1), bytesOf(2), bytesOf(3)}, [2]uint64{1, 2})
	m, err := NewMassif(data)
	require.NoError(t, err)

	require.Error(t, m.CheckIdentity(3, 0))
	require.Error(t, m.CheckIdentity(2, 1))
}

func bytesOf(b byte) []byte {
	v := make([]byte, ValueBytes)
	v[0] = b
	return v
}
