package massifs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	massifBlobNameFmt     = "%016d.log"
	checkpointBlobNameFmt = "%016d.sth"
)

// MassifObjectKey returns the object storage key for the massif blob
// holding massifIndex, for a log of the given massif height.
func MassifObjectKey(massifHeight uint8, logID uuid.UUID, massifIndex uint32) string {
	return fmt.Sprintf("v2/merklelog/massifs/%d/%s/"+massifBlobNameFmt, massifHeight, logID.String(), massifIndex)
}

// CheckpointObjectKey returns the object storage key for the checkpoint
// blob closing massifIndex, for a log of the given massif height.
func CheckpointObjectKey(massifHeight uint8, logID uuid.UUID, massifIndex uint32) string {
	return fmt.Sprintf("v2/merklelog/checkpoints/%d/%s/"+checkpointBlobNameFmt, massifHeight, logID.String(), massifIndex)
}

// InboundLeafObjectKey returns the object storage key for a cached inbound
// COSE_Sign1 statement, keyed by its content hash within a fence (the
// enqueue-time bucket used to bound how many objects a TTL sweep must scan
// at once).
func InboundLeafObjectKey(logID uuid.UUID, fenceIndex uint64, sha256Hex string) string {
	return fmt.Sprintf("logs/%s/leaves/%d/%s", logID.String(), fenceIndex, sha256Hex)
}

// massifPrefix returns the common object storage prefix under which every
// massif blob for a log is listed.
func massifPrefix(massifHeight uint8, logID uuid.UUID) string {
	return fmt.Sprintf("v2/merklelog/massifs/%d/%s/", massifHeight, logID.String())
}

// latestMassifIndex picks out the highest massifIndex encoded in a listing
// of massif blob names (the fixed width zero-padded basenames sort
// lexically in index order, so the last name read back from a storage
// listing is already the head, but callers may hand this an unordered
// slice so we scan explicitly).
func latestMassifIndex(names []string) (uint32, bool, error) {
	var (
		found bool
		head  uint32
	)
	for _, name := range names {
		base := name
		if i := strings.LastIndexByte(base, '/'); i >= 0 {
			base = base[i+1:]
		}
		base = strings.TrimSuffix(base, ".log")
		idx, err := strconv.ParseUint(base, 10, 32)
		if err != nil {
			continue
		}
		if !found || uint32(idx) > head {
			head = uint32(idx)
			found = true
		}
	}
	return head, found, nil
}
