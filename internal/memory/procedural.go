package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const skillPrefix = "procedural:skill:"

// BadgerProceduralStore implements ProceduralStore using BadgerDB
type BadgerProceduralStore struct {
	db *badger.DB
}

// NewBadgerProceduralStore opens a BadgerDB-backed procedural store at path
func NewBadgerProceduralStore(path string) (*BadgerProceduralStore, error) {
	opts := badger.DefaultOptions(expandPath(path)).
		WithLoggingLevel(badger.WARNING)
	return openBadger(opts)
}

// NewInMemoryProceduralStore opens a BadgerDB store that never touches disk
func NewInMemoryProceduralStore() (*BadgerProceduralStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING)
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerProceduralStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerProceduralStore{db: db}, nil
}

// StoreSkill upserts a skill
func (s *BadgerProceduralStore) StoreSkill(ctx context.Context, skill *Skill) error {
	if skill.Name == "" {
		return fmt.Errorf("store skill: empty name")
	}

	data, err := json.Marshal(skill)
	if err != nil {
		return fmt.Errorf("failed to marshal skill: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(skillPrefix+skill.Name), data)
	})
}

// GetSkill retrieves a skill by name
func (s *BadgerProceduralStore) GetSkill(ctx context.Context, name string) (*Skill, error) {
	var skill Skill

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(skillPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &skill)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("skill not found: %s", name)
	}
	if err != nil {
		return nil, err
	}

	return &skill, nil
}

// LoadSkills returns every stored skill
func (s *BadgerProceduralStore) LoadSkills(ctx context.Context) ([]*Skill, error) {
	var skills []*Skill

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(skillPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var skill Skill
				if err := json.Unmarshal(val, &skill); err != nil {
					return nil // skip malformed entries
				}
				skills = append(skills, &skill)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return skills, nil
}

// Close closes the BadgerDB instance
func (s *BadgerProceduralStore) Close() error {
	return s.db.Close()
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
