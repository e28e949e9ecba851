// Package config holds the service-wide tunables from spec.md §6, with
// defaults matching the spec and environment-variable overrides in the
// style the rest of this line of services uses (flags at cmd/ entry,
// falling back to environment variables, no config file format).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Queue holds the per-shard tunables enforced by the SequencingQueue.
type Queue struct {
	Shards          int
	MaxPending      int
	MaxPollers      int
	MaxAttempts     int
	PollerTimeout   time.Duration
	MaxExtraSize    int
	LeafTTLSeconds  int
	MaxBodyBytes    int64
}

// Defaults match spec.md §6's tunable table exactly.
func Defaults() Queue {
	return Queue{
		Shards:         8,
		MaxPending:     100_000,
		MaxPollers:     50,
		MaxAttempts:    5,
		PollerTimeout:  4_000 * time.Millisecond,
		MaxExtraSize:   32,
		LeafTTLSeconds: 24 * 60 * 60,
		MaxBodyBytes:   4 << 20,
	}
}

// FromEnv starts from Defaults and applies any of the recognized
// environment variable overrides, failing fast on a malformed value rather
// than silently falling back.
func FromEnv() (Queue, error) {
	cfg := Defaults()
	for _, o := range []struct {
		name string
		set  func(string) error
	}{
		{"SEQUENCER_SHARDS", intSetter(&cfg.Shards)},
		{"SEQUENCER_MAX_PENDING", intSetter(&cfg.MaxPending)},
		{"SEQUENCER_MAX_POLLERS", intSetter(&cfg.MaxPollers)},
		{"SEQUENCER_MAX_ATTEMPTS", intSetter(&cfg.MaxAttempts)},
		{"SEQUENCER_POLLER_TIMEOUT_MS", durationMsSetter(&cfg.PollerTimeout)},
		{"SEQUENCER_MAX_EXTRA_SIZE", intSetter(&cfg.MaxExtraSize)},
		{"SEQUENCER_LEAF_TTL_SECONDS", intSetter(&cfg.LeafTTLSeconds)},
		{"SEQUENCER_MAX_BODY_BYTES", int64Setter(&cfg.MaxBodyBytes)},
	} {
		v, ok := os.LookupEnv(o.name)
		if !ok {
			continue
		}
		if err := o.set(v); err != nil {
			return Queue{}, fmt.Errorf("config: %s: %w", o.name, err)
		}
	}
	return cfg, nil
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func int64Setter(dst *int64) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func durationMsSetter(dst *time.Duration) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = time.Duration(n) * time.Millisecond
		return nil
	}
}
