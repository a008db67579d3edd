// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/cinesync/cinesync/internal/config"
	"github.com/cinesync/cinesync/internal/logging"
	"github.com/cinesync/cinesync/internal/models"
)

// Sentinel errors returned by the registry.
var (
	// ErrNotFound indicates the party id or share code is unresolvable.
	ErrNotFound = errors.New("party not found")

	// ErrDuplicateShareCode indicates a share-code collision during
	// creation. Create retries internally; callers only see this when
	// every retry collided.
	ErrDuplicateShareCode = errors.New("duplicate share code")
)

const (
	partyKeyPrefix = "party:"
	codeKeyPrefix  = "code:"

	// shareCodeBytes gives 8 uppercase hex characters per code.
	shareCodeBytes = 4
)

// PartyDraft carries the creation parameters for a new party. The store
// assigns the id, share code, and timestamps.
type PartyDraft struct {
	Host       string
	MovieID    string
	MovieTitle string
	PartyName  string
	IsPrivate  bool
	SecretHash []byte
}

// Store is the BadgerDB-backed party registry.
type Store struct {
	db               *badger.DB
	shareCodeRetries int
}

// Open opens the registry at the configured path, or in memory when
// cfg.InMemory is set.
func Open(cfg config.RegistryConfig, shareCodeRetries int) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Badger's own logger is noisy at INFO; registry operations are logged
	// by this package instead.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry at %s: %w", cfg.Path, err)
	}

	if shareCodeRetries < 1 {
		shareCodeRetries = 5
	}

	return &Store{db: db, shareCodeRetries: shareCodeRetries}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// generateShareCode returns a short human-shareable party alias:
// 4 random bytes, hex encoded, uppercased.
func generateShareCode() (string, error) {
	buf := make([]byte, shareCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Create persists a new party from the draft. The share code is generated
// and checked against the code index inside the commit transaction; on
// collision a fresh code is generated, up to the configured retry bound.
func (s *Store) Create(ctx context.Context, draft PartyDraft) (*models.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	party := &models.Party{
		ID:           uuid.New().String(),
		Host:         draft.Host,
		MovieID:      draft.MovieID,
		MovieTitle:   draft.MovieTitle,
		PartyName:    draft.PartyName,
		IsPrivate:    draft.IsPrivate,
		SecretHash:   draft.SecretHash,
		Participants: []string{draft.Host},
		IsActive:     true,
		IsPlaying:    false,
		CurrentTime:  0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for attempt := 0; attempt < s.shareCodeRetries; attempt++ {
		code, err := generateShareCode()
		if err != nil {
			return nil, err
		}
		party.ShareCode = code

		err = s.db.Update(func(txn *badger.Txn) error {
			// The index lookup and both writes share one transaction, so
			// a concurrent creator with the same code loses at commit.
			_, err := txn.Get([]byte(codeKeyPrefix + code))
			if err == nil {
				return ErrDuplicateShareCode
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			data, err := json.Marshal(party)
			if err != nil {
				return fmt.Errorf("failed to marshal party: %w", err)
			}
			if err := txn.Set([]byte(partyKeyPrefix+party.ID), data); err != nil {
				return err
			}
			return txn.Set([]byte(codeKeyPrefix+code), []byte(party.ID))
		})
		if errors.Is(err, ErrDuplicateShareCode) || errors.Is(err, badger.ErrConflict) {
			logging.Debug().Str("share_code", code).Msg("share code collision, regenerating")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create party: %w", err)
		}
		return party, nil
	}

	return nil, ErrDuplicateShareCode
}

// GetByID resolves a party by its opaque id.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var party *models.Party
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		party, err = getParty(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return party, nil
}

// GetByShareCode resolves a party via the share-code index.
func (s *Store) GetByShareCode(ctx context.Context, code string) (*models.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	code = strings.ToUpper(code)
	var party *models.Party
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(codeKeyPrefix + code))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			party, err = getParty(txn, string(val))
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return party, nil
}

// Update applies mutate to the stored party record in a single atomic
// read-modify-write transaction and returns the updated record. The
// mutation sees the current committed state; concurrent updates to the
// same record are serialized by Badger and resolve last-write-wins at the
// field level, which is the accepted policy for host sync calls.
func (s *Store) Update(ctx context.Context, id string, mutate func(*models.Party) error) (*models.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated *models.Party
	err := s.db.Update(func(txn *badger.Txn) error {
		party, err := getParty(txn, id)
		if err != nil {
			return err
		}
		if err := mutate(party); err != nil {
			return err
		}
		party.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(party)
		if err != nil {
			return fmt.Errorf("failed to marshal party: %w", err)
		}
		if err := txn.Set([]byte(partyKeyPrefix+id), data); err != nil {
			return err
		}
		updated = party
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a party record and its share-code index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		party, err := getParty(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete([]byte(codeKeyPrefix + party.ShareCode)); err != nil {
			return err
		}
		return txn.Delete([]byte(partyKeyPrefix + id))
	})
}

// ListActive returns all parties with IsActive=true, newest first.
func (s *Store) ListActive(ctx context.Context) ([]*models.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var parties []*models.Party
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(partyKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var party models.Party
				if err := json.Unmarshal(val, &party); err != nil {
					return fmt.Errorf("failed to unmarshal party: %w", err)
				}
				if party.IsActive {
					parties = append(parties, &party)
				}
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

	// Newest first for listings.
	sort.Slice(parties, func(i, j int) bool {
		return parties[i].CreatedAt.After(parties[j].CreatedAt)
	})
	return parties, nil
}

// getParty reads and decodes a party record within an open transaction.
func getParty(txn *badger.Txn, id string) (*models.Party, error) {
	item, err := txn.Get([]byte(partyKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var party models.Party
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &party)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal party: %w", err)
	}
	return &party, nil
}
