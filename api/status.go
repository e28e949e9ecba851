package api

import (
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/datatrails/go-datatrails-sequencer/massifs"
	"github.com/datatrails/go-datatrails-sequencer/mmr"
	"github.com/datatrails/go-datatrails-sequencer/problem"
	"github.com/datatrails/go-datatrails-sequencer/queue"
)

// Status implements C9: GET /logs/{logId}/entries/{contentHashHex}.
type Status struct {
	Router       *queue.Router
	Store        *massifs.ObjectStore
	MassifHeight uint8
}

func (st *Status) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/logs/{logId}/entries/{contentHashHex}", st.handleStatus).Methods(http.MethodGet)
}

func (st *Status) handleStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	logID, err := uuid.Parse(vars["logId"])
	if err != nil {
		problem.Write(w, problem.InvalidRequest("logId must be a UUID"))
		return
	}
	contentHash, err := hex.DecodeString(vars["contentHashHex"])
	if err != nil || len(contentHash) != 32 {
		problem.Write(w, problem.InvalidRequest("contentHashHex must be 64 hex characters"))
		return
	}

	shard := st.Router.Shard(logIDKey(logID))
	resolution, err := shard.ResolveContent(r.Context(), contentHash)
	if err != nil {
		problem.Write(w, problem.Internal(err.Error()))
		return
	}
	if resolution == nil {
		w.Header().Set("Location", r.URL.String())
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusSeeOther)
		return
	}

	data, err := st.Store.MassifData(r.Context(), st.MassifHeight, logID, resolution.MassifIndex)
	if err != nil || data == nil {
		problem.Write(w, problem.NotFound("owning massif is not available"))
		return
	}
	massif, err := massifs.NewMassif(data)
	if err != nil {
		problem.Write(w, problem.Internal(err.Error()))
		return
	}
	idtimestamp, err := massif.LeafIDTimestamp(resolution.LeafIndex)
	if err != nil {
		problem.Write(w, problem.Internal(err.Error()))
		return
	}

	entryID := massifs.EntryID{IDTimestamp: idtimestamp, MMRIndex: mmr.MMRIndex(resolution.LeafIndex)}
	location := fmt.Sprintf("/logs/%s/%d/entries/%s/receipt", logID, st.MassifHeight, entryID.Encode())
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusSeeOther)
}
