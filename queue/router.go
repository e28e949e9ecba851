package queue

import "context"

// Router partitions the log namespace across N fixed shards (§4.2):
// shardIndex := djb2(logId) mod N.
type Router struct {
	shards []*Shard
}

// NewRouter wires a fixed set of shards, indexed 0..N-1 as spec.md expects.
func NewRouter(shards []*Shard) *Router {
	return &Router{shards: shards}
}

// ShardFor returns the shard index a log routes to.
func (r *Router) ShardFor(logID []byte) int {
	return int(DJB2(logID) % uint32(len(r.shards)))
}

// Shard returns the shard a log routes to.
func (r *Router) Shard(logID []byte) *Shard {
	return r.shards[r.ShardFor(logID)]
}

// ShardByIndex returns the shard at i, for callers (the ingress surface's
// ?shard=i parameter) that address a shard directly rather than by log id.
func (r *Router) ShardByIndex(i int) (*Shard, bool) {
	if i < 0 || i >= len(r.shards) {
		return nil, false
	}
	return r.shards[i], true
}

// NumShards returns the fixed shard count N.
func (r *Router) NumShards() int {
	return len(r.shards)
}

// AggregateStats walks all shards and sums/maxes per-field per §4.2.
type AggregateStats struct {
	Pending            int64
	DeadLetters        int64
	ActivePollers      int
	OldestEntryAgeMs   *int64
	PollerLimitReached bool
}

func (r *Router) AggregateStats(ctx context.Context) (AggregateStats, error) {
	var agg AggregateStats
	for _, s := range r.shards {
		st, err := s.Stats(ctx)
		if err != nil {
			return AggregateStats{}, err
		}
		agg.Pending += st.Pending
		agg.DeadLetters += st.DeadLetters
		agg.ActivePollers += st.ActivePollers
		agg.PollerLimitReached = agg.PollerLimitReached || st.PollerLimitReached
		if st.OldestPendingAgeMs != nil {
			if agg.OldestEntryAgeMs == nil || *st.OldestPendingAgeMs > *agg.OldestEntryAgeMs {
				age := *st.OldestPendingAgeMs
				agg.OldestEntryAgeMs = &age
			}
		}
	}
	return agg, nil
}
