package memory

import (
	"fmt"

	"github.com/rs/zerolog"
)

// OpenBackends connects the mirrors named in config. Empty settings leave the
// corresponding backend nil. On failure every backend opened so far is closed.
func OpenBackends(config *Config, log zerolog.Logger) (Backends, error) {
	var b Backends

	if config.RedisURL != "" {
		store, err := NewRedisEpisodicStore(config)
		if err != nil {
			return Backends{}, fmt.Errorf("episodic backend: %w", err)
		}
		b.Episodic = store
		log.Info().Str("addr", config.RedisURL).Msg("episodic memory mirrored to redis")
	}

	if config.DgraphURL != "" {
		store, err := NewDgraphSemanticStore(config)
		if err != nil {
			closeBackends(b)
			return Backends{}, fmt.Errorf("semantic backend: %w", err)
		}
		b.Semantic = store
		log.Info().Str("addr", config.DgraphURL).Msg("semantic memory mirrored to dgraph")
	}

	if config.BadgerPath != "" {
		var (
			store *BadgerProceduralStore
			err   error
		)
		if config.BadgerPath == ":memory:" {
			store, err = NewInMemoryProceduralStore()
		} else {
			store, err = NewBadgerProceduralStore(config.BadgerPath)
		}
		if err != nil {
			closeBackends(b)
			return Backends{}, fmt.Errorf("procedural backend: %w", err)
		}
		b.Procedural = store
		log.Info().Str("path", config.BadgerPath).Msg("procedural memory mirrored to badger")
	}

	return b, nil
}

func closeBackends(b Backends) {
	if b.Episodic != nil {
		b.Episodic.Close()
	}
	if b.Semantic != nil {
		b.Semantic.Close()
	}
	if b.Procedural != nil {
		b.Procedural.Close()
	}
}
