package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/datatrails/go-datatrails-sequencer/massifs"
	"github.com/datatrails/go-datatrails-sequencer/mmr"
	"github.com/datatrails/go-datatrails-sequencer/problem"
)

const receiptContentType = "application/scitt-receipt+cbor"

// Receipt implements C10: GET /logs/{logId}/{massifHeight}/entries/{entryIdHex}/receipt.
type Receipt struct {
	Store *massifs.ObjectStore
}

func (rc *Receipt) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/logs/{logId}/{massifHeight}/entries/{entryIdHex}/receipt", rc.handleReceipt).Methods(http.MethodGet)
}

func (rc *Receipt) handleReceipt(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	logID, err := uuid.Parse(vars["logId"])
	if err != nil {
		problem.Write(w, problem.InvalidRequest("logId must be a UUID"))
		return
	}
	massifHeight64, err := strconv.Atoi(vars["massifHeight"])
	if err != nil || massifHeight64 < 1 || massifHeight64 > 64 {
		problem.Write(w, problem.InvalidRequest("massifHeight must be in [1, 64]"))
		return
	}
	massifHeight := uint8(massifHeight64)

	entryID, err := massifs.DecodeEntryID(vars["entryIdHex"])
	if err != nil {
		problem.Write(w, problem.InvalidRequest(err.Error()))
		return
	}

	massifIndex := mmr.MassifIndexFromMMRIndex(massifHeight, entryID.MMRIndex)

	checkpointData, err := rc.Store.CheckpointData(r.Context(), massifHeight, logID, uint32(massifIndex))
	if err != nil || checkpointData == nil {
		problem.Write(w, problem.NotFound("no checkpoint covers this entry"))
		return
	}
	checkpoint, err := massifs.DecodeCheckpoint(checkpointData)
	if err != nil {
		problem.Write(w, problem.NotFound("checkpoint is unreadable"))
		return
	}
	if entryID.MMRIndex >= checkpoint.State.MMRSize {
		problem.Write(w, problem.NotFound("checkpoint does not yet cover this entry"))
		return
	}
	peakReceipts, err := massifs.PeakReceipts(checkpoint.Msg)
	if err != nil {
		problem.Write(w, problem.NotFound("checkpoint peak receipts are unreadable"))
		return
	}

	massifData, err := rc.Store.MassifData(r.Context(), massifHeight, logID, uint32(massifIndex))
	if err != nil || massifData == nil {
		problem.Write(w, problem.NotFound("owning massif is not available"))
		return
	}
	massif, err := massifs.NewMassif(massifData)
	if err != nil {
		problem.Write(w, problem.NotFound(err.Error()))
		return
	}
	if err := massif.CheckIdentity(massifHeight, uint32(massifIndex)); err != nil {
		problem.Write(w, problem.NotFound(err.Error()))
		return
	}

	receipt, err := massifs.AssembleReceipt(checkpoint.State, peakReceipts, massif, entryID.MMRIndex)
	if err != nil {
		problem.Write(w, problem.NotFound(err.Error()))
		return
	}

	w.Header().Set("Content-Type", receiptContentType)
	_, _ = w.Write(receipt)
}
