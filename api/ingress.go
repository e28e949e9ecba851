package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/mux"

	"github.com/datatrails/go-datatrails-sequencer/problem"
	"github.com/datatrails/go-datatrails-sequencer/queue"
)

const cborContentType = "application/cbor"

// Ingress implements C7: the three ranger endpoints over the queue router
// (pull and ack over CBOR, stats as JSON).
type Ingress struct {
	Router *queue.Router
}

func (ig *Ingress) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/queue/pull", ig.handlePull).Methods(http.MethodPost)
	r.HandleFunc("/queue/ack", ig.handleAck).Methods(http.MethodPost)
	r.HandleFunc("/queue/stats", ig.handleStats).Methods(http.MethodGet)
}

func (ig *Ingress) handlePull(w http.ResponseWriter, r *http.Request) {
	if !requireCBOR(w, r) {
		return
	}
	var req pullRequest
	if err := cbor.NewDecoder(r.Body).Decode(&req); err != nil || req.PollerID == "" {
		problem.Write(w, problem.InvalidRequest("malformed pull request"))
		return
	}

	shardParam := r.URL.Query().Get("shard")
	shard, ok := ig.shardByIndex(shardParam)
	if !ok {
		problem.Write(w, problem.InvalidRequest("unknown shard"))
		return
	}

	res, err := shard.Pull(r.Context(), req.PollerID, int(req.BatchSize), int64(req.VisibilityMs))
	if err != nil {
		problem.Write(w, problem.Internal(err.Error()))
		return
	}

	wire := wirePullResponse{Version: uint64(res.Version), LeaseExpiry: uint64(res.LeaseExpiry)}
	for _, g := range res.LogGroups {
		wg := wireLogGroup{LogID: g.LogID, SeqLo: g.SeqLo, SeqHi: g.SeqHi}
		for _, e := range g.Entries {
			wg.Entries = append(wg.Entries, wireEntry{
				ContentHash: e.ContentHash,
				Extra0:      e.Extra[0], Extra1: e.Extra[1], Extra2: e.Extra[2], Extra3: e.Extra[3],
			})
		}
		wire.LogGroups = append(wire.LogGroups, wg)
	}

	writeCBOR(w, wire)
}

func (ig *Ingress) handleAck(w http.ResponseWriter, r *http.Request) {
	if !requireCBOR(w, r) {
		return
	}
	var req ackRequest
	if err := cbor.NewDecoder(r.Body).Decode(&req); err != nil || len(req.LogID) == 0 {
		problem.Write(w, problem.InvalidRequest("malformed ack request"))
		return
	}
	if req.MassifHeight == 0 {
		problem.Write(w, problem.InvalidRequest("massifHeight must be >= 1"))
		return
	}

	shard := ig.Router.Shard(req.LogID)
	acked, err := shard.AckFirst(r.Context(), req.LogID, req.SeqLo, int(req.Limit), req.FirstLeafIndex, uint8(req.MassifHeight))
	if err != nil {
		problem.Write(w, problem.Internal(err.Error()))
		return
	}
	writeCBOR(w, ackResponse{Acked: uint64(acked)})
}

func (ig *Ingress) handleStats(w http.ResponseWriter, r *http.Request) {
	agg, err := ig.Router.AggregateStats(r.Context())
	if err != nil {
		problem.Write(w, problem.Internal(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(agg)
}

// shardByIndex resolves the optional ?shard=i query parameter. An empty
// value is only valid when there is exactly one shard.
func (ig *Ingress) shardByIndex(param string) (*queue.Shard, bool) {
	if param == "" {
		if ig.Router.NumShards() == 1 {
			return ig.Router.ShardByIndex(0)
		}
		return nil, false
	}
	idx, err := strconv.Atoi(param)
	if err != nil {
		return nil, false
	}
	return ig.Router.ShardByIndex(idx)
}

func requireCBOR(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct != cborContentType && ct != "application/cbor; charset=utf-8" {
		problem.Write(w, problem.UnsupportedMedia("expected application/cbor"))
		return false
	}
	return true
}

func writeCBOR(w http.ResponseWriter, v any) {
	data, err := cborEncMode.Marshal(v)
	if err != nil {
		problem.Write(w, problem.Internal(err.Error()))
		return
	}
	w.Header().Set("Content-Type", cborContentType)
	_, _ = w.Write(data)
}
