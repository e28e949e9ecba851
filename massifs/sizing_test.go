package massifs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLeafRecordOffsetIsStrideTimesOrdinal(t *testing.T) {
	require.Equal(t, uint64(0), leafRecordOffset(0))
	require.Equal(t, uint64(leafRecordBytes), leafRecordOffset(1))
	require.Equal(t, uint64(leafRecordBytes)*5, leafRecordOffset(5))
}

func TestLeafTableBytesScalesWithLeafCount(t *testing.T) {
	require.Equal(t, uint64(0), leafTableBytes(0))
	require.Equal(t, uint64(leafRecordBytes)*4, leafTableBytes(4))
}

func TestNodeStoreBytesAllocatesForMaxNodeCount(t *testing.T) {
	require.Equal(t, uint64(0), nodeStoreBytes(0))
	require.Equal(t, uint64(2*4-1)*nodeRecordBytes, nodeStoreBytes(4))
}

func TestCheckLeafCountRejectsOverflow(t *testing.T) {
	require.NoError(t, checkLeafCount(1))
	require.NoError(t, checkLeafCount(uint64(^uint32(0))))
	require.Error(t, checkLeafCount(uint64(^uint32(0))+1))
}
