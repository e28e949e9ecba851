package massifs

import (
	"errors"
	"fmt"

	commoncose "github.com/datatrails/go-datatrails-common/cose"
	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/datatrails/go-datatrails-sequencer/mmr"
)

var (
	// ErrCheckpointTooOld means the checkpoint's mmrSize does not yet cover
	// the requested mmrIndex (spec.md §4.6 step 4).
	ErrCheckpointTooOld = errors.New("massifs: checkpoint does not yet cover this entry")
	// ErrPeakReceiptMissing means the checkpoint's peak receipt array is
	// too short for the peak the inclusion proof climbs to.
	ErrPeakReceiptMissing = errors.New("massifs: checkpoint is missing the covering peak receipt")
)

// mmRiverInclusionProof mirrors the MMRIVER wire shape for a single
// inclusion proof entry, keyed the way veraison/go-cose and fxamacker/cbor
// encode COSE header maps: {1: mmrIndex, 2: proof}.
type mmRiverInclusionProof struct {
	Index uint64   `cbor:"1,keyasint"`
	Proof [][]byte `cbor:"2,keyasint"`
}

type mmRiverVerifiableProofs struct {
	InclusionProofs []mmRiverInclusionProof `cbor:"-1,keyasint,omitempty"`
}

type mmRiverVerifiableProofsHeader struct {
	VerifiableProofs mmRiverVerifiableProofs `cbor:"396,keyasint"`
}

// DecodeCheckpoint parses a checkpoint blob: the COSE_Sign1 envelope and its
// MMRState payload. Use PeakReceipts to pull the pre-signed peak receipts
// out of the same message's unprotected header.
func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	msg, err := commoncose.UnmarshalCBOR(data)
	if err != nil {
		return nil, fmt.Errorf("massifs: decoding checkpoint COSE_Sign1: %w", err)
	}
	var state MMRState
	if err := cbor.Unmarshal(msg.Payload, &state); err != nil {
		return nil, fmt.Errorf("massifs: decoding checkpoint payload: %w", err)
	}
	return &Checkpoint{State: state, Msg: msg}, nil
}

// PeakReceipts extracts the pre-signed, proof-less peak receipts from a
// decoded checkpoint's unprotected header.
func PeakReceipts(msg *cose.Sign1Message) ([][]byte, error) {
	var receipts MMRStateReceipts
	if err := cbor.Unmarshal(msg.Headers.RawUnprotected, &receipts); err != nil {
		return nil, fmt.Errorf("massifs: decoding checkpoint peak receipts: %w", err)
	}
	return receipts.PeakReceipts, nil
}

// AssembleReceipt implements spec.md §4.6 steps 6-9: build the inclusion
// proof from mmrIndex to its covering peak, pick the matching pre-signed
// peak receipt, and attach the proof in the receipt's unprotected header at
// label 396.
func AssembleReceipt(state MMRState, peakReceipts [][]byte, massif *Massif, mmrIndex uint64) ([]byte, error) {
	if mmrIndex >= state.MMRSize {
		return nil, ErrCheckpointTooOld
	}

	proof, err := massif.InclusionProof(state.MMRSize, mmrIndex)
	if err != nil {
		return nil, fmt.Errorf("massifs: building inclusion proof: %w", err)
	}

	leafCount := mmr.PeaksBitmap(state.MMRSize)
	peakIndex := mmr.PeakIndex(leafCount, len(proof))
	if peakIndex >= len(peakReceipts) {
		return nil, ErrPeakReceiptMissing
	}

	signed, err := commoncose.NewCoseSign1MessageFromCBOR(
		peakReceipts[peakIndex], commoncose.WithDecOptions(checkpointDecOptions))
	if err != nil {
		return nil, fmt.Errorf("massifs: decoding pre-signed peak receipt: %w", err)
	}

	header := mmRiverVerifiableProofsHeader{
		VerifiableProofs: mmRiverVerifiableProofs{
			InclusionProofs: []mmRiverInclusionProof{{Index: mmrIndex, Proof: proof}},
		},
	}
	signed.Headers.Unprotected[VDSCoseReceiptProofsTag] = header.VerifiableProofs

	return signed.MarshalCBOR()
}
