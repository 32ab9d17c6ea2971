package repository

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/usercf/internal/domain/model"
	"github.com/okian/usercf/pkg/logger"
	"github.com/okian/usercf/pkg/metrics"
)

// Keys are ratingKeyPrefix + user + keySeparator + item, so the ratings of
// one user are contiguous and can be scanned by prefix.
const (
	ratingKeyPrefix = "rating:"
	keySeparator    = '\x00'
)

// storedRating is the value written for each rating key.
type storedRating struct {
	EventID string    `json:"event_id,omitempty"`
	Rating  float64   `json:"rating"`
	TS      time.Time `json:"ts"`
}

// BadgerStore persists ratings in BadgerDB.
type BadgerStore struct {
	db      *badger.DB
	log     logger.Logger
	closed  atomic.Bool
	updater gaugeUpdater
}

// OpenBadgerStore opens (or creates) a badger database in dir.
// An empty dir runs badger fully in memory.
func OpenBadgerStore(ctx context.Context, dir string, opts ...Option) (*BadgerStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	bopts := badger.DefaultOptions(dir)
	if dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	bopts = bopts.WithLogger(badgerLogger{log: o.log.Named("badger")})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}

	s := &BadgerStore{db: db, log: o.log}
	s.updater.start(ctx, o.metricsUpdateInterval, s)
	return s, nil
}

func ratingKey(user, item string) []byte {
	return []byte(ratingKeyPrefix + user + string(keySeparator) + item)
}

func userPrefix(user string) []byte {
	return []byte(ratingKeyPrefix + user + string(keySeparator))
}

// splitKey returns the user and item encoded in a rating key.
func splitKey(key []byte) (user, item string, ok bool) {
	rest, found := strings.CutPrefix(string(key), ratingKeyPrefix)
	if !found {
		return "", "", false
	}
	return strings.Cut(rest, string(keySeparator))
}

// Put implements Store.Put.
func (s *BadgerStore) Put(ctx context.Context, ev model.RatingEvent) error {
	if err := validateEvent(ev); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_rating")
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()

	data, err := json.Marshal(storedRating{EventID: ev.EventID, Rating: ev.Rating, TS: ev.TS})
	if err != nil {
		return fmt.Errorf("marshal rating: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(ratingKey(ev.UserID, ev.ItemID), data)
	})
	if err != nil {
		metrics.RecordErrorByComponent("repository", "write_failed")
		return fmt.Errorf("set rating: %w", err)
	}

	metrics.RecordStoreUpdateLatency(msSince(start))
	return nil
}

// Snapshot implements Store.Snapshot. It reads from a single badger
// transaction so the table is a consistent point-in-time view.
func (s *BadgerStore) Snapshot(ctx context.Context) (model.RatingTable, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	table := make(model.RatingTable)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(ratingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			user, itemID, ok := splitKey(item.Key())
			if !ok {
				continue
			}
			var rec storedRating
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode rating %s/%s: %w", user, itemID, err)
			}
			table.Set(user, itemID, rec.Rating)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot ratings: %w", err)
	}

	metrics.RecordStoreSnapshotLatency(msSince(start))
	return table, nil
}

// User implements Store.User.
func (s *BadgerStore) User(ctx context.Context, userID string) (map[string]float64, error) {
	out := make(map[string]float64)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := userPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			_, itemID, ok := splitKey(item.Key())
			if !ok {
				continue
			}
			var rec storedRating
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode rating %s/%s: %w", userID, itemID, err)
			}
			out[itemID] = rec.Rating
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("%w: %q", ErrNotFound, userID)
	}
	return out, nil
}

// CountUsers implements Store.CountUsers. Keys are sorted, so each user
// starts a new run of keys.
func (s *BadgerStore) CountUsers(ctx context.Context) (int, error) {
	users := 0
	err := s.scanKeys(func(user, _ string, prev string) {
		if user != prev {
			users++
		}
	})
	return users, err
}

// CountRatings implements Store.CountRatings.
func (s *BadgerStore) CountRatings(ctx context.Context) (int, error) {
	ratings := 0
	err := s.scanKeys(func(string, string, string) { ratings++ })
	return ratings, err
}

// scanKeys visits every rating key without fetching values.
func (s *BadgerStore) scanKeys(visit func(user, item, prevUser string)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prev := ""
		prefix := []byte(ratingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			user, item, ok := splitKey(it.Item().Key())
			if !ok {
				continue
			}
			visit(user, item, prev)
			prev = user
		}
		return nil
	})
}

// Load implements Store.Load using a badger write batch.
func (s *BadgerStore) Load(ctx context.Context, table model.RatingTable) error {
	if s.closed.Load() {
		return ErrClosed
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	now := time.Now().UTC()
	n := 0
	for user, items := range table {
		for item, r := range items {
			if err := validateEvent(model.RatingEvent{UserID: user, ItemID: item, Rating: r}); err != nil {
				return err
			}
			data, err := json.Marshal(storedRating{Rating: r, TS: now})
			if err != nil {
				return fmt.Errorf("marshal rating: %w", err)
			}
			if err := wb.Set(ratingKey(user, item), data); err != nil {
				return fmt.Errorf("batch rating %s/%s: %w", user, item, err)
			}
			n++
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush ratings: %w", err)
	}

	s.log.Info(ctx, "ratings loaded", logger.Int("users", len(table)), logger.Int("ratings", n))
	return nil
}

// Close stops the gauge updater and closes the database.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.updater.close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

// badgerLogger routes badger's printf-style logging into our logger.
type badgerLogger struct {
	log logger.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.log.Error(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.log.Warn(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.log.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.log.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}
