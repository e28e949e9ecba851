package massifs

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"

	commoncbor "github.com/datatrails/go-datatrails-common/cbor"
	commoncose "github.com/datatrails/go-datatrails-common/cose"
	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// MMRStateVersion distinguishes the checkpoint payload schema. A log's
// checkpoints may span both versions over its lifetime; receipt assembly
// must accept either.
type MMRStateVersion int

const (
	MMRStateVersion0 MMRStateVersion = iota
	MMRStateVersion1
)

const (
	// VDSCoseReceiptsTag marks a COSE_Sign1 payload as an MMRIVER receipt.
	VDSCoseReceiptsTag = 395
	// VDSCoseReceiptProofsTag marks the unprotected header label carrying
	// inclusion proof material attached to a pre-signed peak receipt.
	VDSCoseReceiptProofsTag = 396
	VDSMMRiver              = 2
	VDSInclusionProof       = -1
	InclusionProofIndex     = 1
	InclusionProofProof     = 2

	// COSEPrivateStart is the start of the negative label range reserved
	// for private use by COSE implementations.
	COSEPrivateStart = int64(-65535)
	// SealPeakReceiptsLabel is the unprotected header label under which a
	// checkpoint carries its pre-signed, proof-less peak receipts.
	SealPeakReceiptsLabel = COSEPrivateStart - VDSCoseReceiptProofsTag // -65931
)

var ErrNodeSize = errors.New("massifs: node value sizes must match the hash size")

// MMRState is the signed payload of a checkpoint: the minimal attestation
// needed to bind a log to a specific tree size at a specific time.
type MMRState struct {
	Version         int    `cbor:"7,keyasint,omitempty"`
	MMRSize         uint64 `cbor:"1,keyasint"`
	Peaks           [][]byte `cbor:"8,keyasint,omitempty"`
	Timestamp       int64  `cbor:"3,keyasint"`
	IDTimestamp     uint64 `cbor:"4,keyasint"`
	CommitmentEpoch uint32 `cbor:"6,keyasint"`
}

// MMRStateReceipts carries one pre-signed, proof-less COSE Receipt per peak
// of the MMR identified by MMRSize, stored in the checkpoint's unprotected
// header at label SealPeakReceiptsLabel.
type MMRStateReceipts struct {
	PeakReceipts [][]byte `cbor:"-65931,keyasint"`
}

// Checkpoint is a signed commitment to a log's tree state at a point in
// time, published alongside the massif it closes.
type Checkpoint struct {
	State MMRState
	Msg   *cose.Sign1Message
}

// RootSigner produces checkpoints: a COSE_Sign1 over the MMRState payload,
// carrying one pre-signed peak receipt per accumulator peak in its
// unprotected header.
type RootSigner struct {
	issuer    string
	cborCodec commoncbor.CBORCodec
}

// NewRootSigner constructs a RootSigner using issuer as the checkpoint's
// CWT claims issuer.
func NewRootSigner(issuer string, cborCodec commoncbor.CBORCodec) RootSigner {
	return RootSigner{issuer: issuer, cborCodec: cborCodec}
}

// Sign1 produces the CBOR encoding of a signed checkpoint for state. The
// caller must have already checked state is consistent with the log's last
// published checkpoint before calling this.
func (rs RootSigner) Sign1(
	coseSigner cose.Signer,
	keyIdentifier string,
	publicKey *ecdsa.PublicKey,
	subject string,
	state MMRState,
	external []byte,
) ([]byte, error) {

	receipts, err := rs.signEmptyPeakReceipts(coseSigner, publicKey, keyIdentifier, rs.issuer, subject, state.Peaks)
	if err != nil {
		return nil, err
	}
	if len(receipts) != len(state.Peaks) {
		return nil, fmt.Errorf("massifs: receipt vs peak count mismatch: %d vs %d", len(receipts), len(state.Peaks))
	}

	coseHeaders := cose.Headers{
		Protected: cose.ProtectedHeader{
			commoncose.HeaderLabelCWTClaims: commoncose.NewCNFClaim(
				rs.issuer, subject, keyIdentifier, coseSigner.Algorithm(), *publicKey),
		},
		Unprotected: cose.UnprotectedHeader{
			SealPeakReceiptsLabel: receipts,
		},
	}

	payload, err := rs.cborCodec.MarshalCBOR(state)
	if err != nil {
		return nil, err
	}

	msg := cose.Sign1Message{Headers: coseHeaders, Payload: payload}
	if err := msg.Sign(rand.Reader, external, coseSigner); err != nil {
		return nil, err
	}

	// Peaks are detached from the signed payload: a verifier must obtain
	// them independently from the log, rather than trust the carrier.
	state.Peaks = nil
	payload, err = rs.cborCodec.MarshalCBOR(state)
	if err != nil {
		return nil, err
	}
	msg.Payload = payload

	encodable, err := commoncose.NewCoseSign1Message(&msg)
	if err != nil {
		return nil, err
	}
	return encodable.MarshalCBOR()
}

func (rs RootSigner) signEmptyPeakReceipts(
	coseSigner cose.Signer,
	publicKey *ecdsa.PublicKey,
	keyIdentifier, issuer, subject string,
	peaks [][]byte,
) ([][]byte, error) {
	receipts := make([][]byte, len(peaks))
	for i, peak := range peaks {
		receipt, err := rs.signEmptyPeakReceipt(coseSigner, publicKey, keyIdentifier, issuer, subject, peak)
		if err != nil {
			return nil, err
		}
		receipts[i] = receipt
	}
	return receipts, nil
}

// signEmptyPeakReceipt signs a COSE Receipt (MMRIVER) over a single
// accumulator peak, leaving the unprotected header's proof material empty:
// many inclusion proofs lead to the same peak, so one receipt per peak
// serves every leaf underneath it once a proof path is attached.
func (rs RootSigner) signEmptyPeakReceipt(
	coseSigner cose.Signer,
	publicKey *ecdsa.PublicKey,
	keyIdentifier, issuer, subject string,
	peak []byte,
) ([]byte, error) {
	if len(peak) != ValueBytes {
		return nil, fmt.Errorf("%w: peak must be %d bytes, got %d", ErrNodeSize, ValueBytes, len(peak))
	}

	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			VDSCoseReceiptsTag:        VDSMMRiver,
			cose.HeaderLabelAlgorithm: coseSigner.Algorithm(),
			cose.HeaderLabelKeyID:     []byte(keyIdentifier),
			commoncose.HeaderLabelCWTClaims: commoncose.NewCNFClaim(
				issuer, subject, keyIdentifier, coseSigner.Algorithm(), *publicKey),
		},
		Unprotected: cose.UnprotectedHeader{},
	}

	msg := cose.Sign1Message{Headers: headers, Payload: peak}
	if err := msg.Sign(rand.Reader, nil, coseSigner); err != nil {
		return nil, err
	}
	msg.Payload = nil

	encodable, err := commoncose.NewCoseSign1Message(&msg)
	if err != nil {
		return nil, err
	}
	return encodable.MarshalCBOR()
}

var (
	checkpointEncOptions = commoncbor.NewDeterministicEncOpts()
	checkpointDecOptions = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		IntDec:      cbor.IntDecConvertNone,
		TagsMd:      cbor.TagsForbidden,
	}
)

// NewCheckpointCodec builds the deterministic CBOR codec used for
// checkpoint payloads, matching the encoding a verifier must reproduce to
// check a signature.
func NewCheckpointCodec() (commoncbor.CBORCodec, error) {
	return commoncbor.NewCBORCodec(checkpointEncOptions, checkpointDecOptions)
}
