// Command sequencer-sweeper periodically deletes inbound blob cache entries
// whose fence index is below a fixed floor (the -leaves-per-massif flag).
// The configured leaf TTL is passed to each sweep but does not affect which
// objects are deleted. The queue remains the authoritative ingress record;
// this process only tidies the best-effort cache.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/google/uuid"

	"github.com/datatrails/go-datatrails-sequencer/blobcache"
	"github.com/datatrails/go-datatrails-sequencer/config"
)

var (
	container    = flag.String("container", "merklelog", "Object storage container name")
	sweepLogID   = flag.String("log-id", "", "Single logId to sweep (one sweeper per log, per deployment convention)")
	sweepEvery   = flag.Duration("interval", time.Hour, "How often to run the sweep")
	leavesPerMassif = flag.Uint64("leaves-per-massif", 1<<13, "Leaves per massif, used to size the retention floor")
)

func main() {
	flag.Parse()
	logger.New("sequencer-sweeper")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Sugar.Fatalf("loading config: %v", err)
	}

	logID, err := uuid.Parse(*sweepLogID)
	if err != nil {
		logger.Sugar.Fatalf("log-id must be a UUID: %v", err)
	}

	storer, err := azblob.NewDev(azblob.NewDevConfigFromEnv(), *container)
	if err != nil {
		logger.Sugar.Fatalf("connecting to object storage: %v", err)
	}
	cache := blobcache.New(storer)

	ctx := context.Background()
	ticker := time.NewTicker(*sweepEvery)
	defer ticker.Stop()
	for {
		runSweep(ctx, cache, logID, time.Duration(cfg.LeafTTLSeconds)*time.Second, *leavesPerMassif)
		<-ticker.C
	}
}

func runSweep(ctx context.Context, cache *blobcache.Cache, logID uuid.UUID, ttl time.Duration, leavesPerMassif uint64) {
	// Every object whose fence index is below leavesPerMassif is deleted.
	// The floor is fixed: it does not advance with the log's current fence,
	// and ttl is not consulted.
	retainFenceIndex := leavesPerMassif
	swept, err := cache.Sweep(ctx, logID, retainFenceIndex)
	if err != nil {
		logger.Sugar.Errorf("sweep failed for log %s: %v", logID, err)
		return
	}
	logger.Sugar.Infof("swept %d inbound cache objects for log %s", swept, logID)
}
