package massifs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLayoutRegionsAreContiguousAndOrdered(t *testing.T) {
	l, err := NewLayout(8)
	require.NoError(t, err)

	require.Equal(t, uint64(0), l.StartHeaderOffset)
	require.Equal(t, uint64(StartHeaderSize), l.IndexHeaderOffset)
	require.Equal(t, l.IndexHeaderOffset+IndexHeaderSize, l.BloomOffset)
	require.Equal(t, l.BloomOffset+l.BloomBytes, l.FrontierOffset)
	require.Equal(t, l.FrontierOffset+l.FrontierBytes, l.LeafTableOffset)
	require.Equal(t, l.LeafTableOffset+l.LeafTableBytes, l.NodeStoreOffset)
	require.Equal(t, l.NodeStoreOffset+l.NodeStoreBytes, l.PeakStackOffset)
	require.Equal(t, l.PeakStackOffset+PeakStackBytes, l.LogDataOffset)
	require.Equal(t, l.LogDataOffset+l.LogDataBytes, l.TotalBytes)
}

func TestNewLayoutLeafCountDoublesPerHeight(t *testing.T) {
	l7, err := NewLayout(7)
	require.NoError(t, err)
	l8, err := NewLayout(8)
	require.NoError(t, err)
	require.Equal(t, l7.LeafCount*2, l8.LeafCount)
}

func TestNewLayoutRejectsZeroHeight(t *testing.T) {
	_, err := NewLayout(0)
	require.Error(t, err)
}

func TestLogDataNodeOffsetIsWithinLogDataRegion(t *testing.T) {
	l, err := NewLayout(6)
	require.NoError(t, err)

	off := l.LogDataNodeOffset(3)
	require.Equal(t, l.LogDataOffset+3*ValueBytes, off)
	require.Less(t, off, l.TotalBytes)
}
