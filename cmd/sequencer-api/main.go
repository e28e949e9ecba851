// Command sequencer-api serves the registration, status, receipt, and
// ranger ingress HTTP surfaces over a fixed set of SequencingQueue shards.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/datatrails/go-datatrails-sequencer/api"
	"github.com/datatrails/go-datatrails-sequencer/config"
	"github.com/datatrails/go-datatrails-sequencer/massifs"
	"github.com/datatrails/go-datatrails-sequencer/queue"
)

var (
	listenAddr   = flag.String("listen", ":8080", "HTTP listen address")
	massifHeight = flag.Int("massif-height", 14, "Massif height for this deployment")
	issuer       = flag.String("issuer", "sequencer", "CWT claims issuer for checkpoints served by this instance")
	dbDir        = flag.String("db-dir", "./data", "Directory holding one sqlite file per shard")
	container    = flag.String("container", "merklelog", "Object storage container name")
)

func main() {
	flag.Parse()
	logger.New("sequencer-api")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Sugar.Fatalf("loading config: %v", err)
	}

	if err := os.MkdirAll(*dbDir, 0o755); err != nil {
		logger.Sugar.Fatalf("creating db-dir: %v", err)
	}

	ctx := context.Background()
	shards := make([]*queue.Shard, cfg.Shards)
	for i := 0; i < cfg.Shards; i++ {
		db, err := sql.Open("sqlite3", shardDSN(*dbDir, i))
		if err != nil {
			logger.Sugar.Fatalf("opening shard %d: %v", i, err)
		}
		shard, err := queue.NewShard(ctx, db, queue.Config{
			MaxPending:    cfg.MaxPending,
			MaxPollers:    cfg.MaxPollers,
			MaxAttempts:   cfg.MaxAttempts,
			PollerTimeout: cfg.PollerTimeout,
		})
		if err != nil {
			logger.Sugar.Fatalf("initializing shard %d: %v", i, err)
		}
		shards[i] = shard
	}
	router := queue.NewRouter(shards)

	storer, err := azblob.NewDev(azblob.NewDevConfigFromEnv(), *container)
	if err != nil {
		logger.Sugar.Fatalf("connecting to object storage: %v", err)
	}
	store := massifs.NewObjectStore(storer)

	httpRouter := api.NewRouter(router, store, uint8(*massifHeight), cfg.MaxBodyBytes, *issuer)

	logger.Sugar.Infof("sequencer-api listening on %s", *listenAddr)
	if err := http.ListenAndServe(*listenAddr, httpRouter); err != nil {
		logger.Sugar.Fatalf("serving: %v", err)
	}
}

func shardDSN(dir string, i int) string {
	return dir + "/shard-" + strconv.Itoa(i) + ".db"
}
