// Package store persists option sets in a badger database. Each set is
// saved under a scope name and comes back with the persisted-config
// source, so conflict resolution ranks it between filter defaults and
// user overrides.
package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/wudi/colorkit/codec"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observability"
	"github.com/wudi/colorkit/option"
)

// ErrNotFound is returned by Load and Delete for an unknown scope.
var ErrNotFound = errors.New("store: scope not found")

const (
	scopePrefix   = "scope/"
	recordVersion = 1
)

// record is the stored form of one scope.
type record struct {
	Version int              `cbor:"1,keyasint"`
	SavedAt int64            `cbor:"2,keyasint"`
	Options codec.RawMessage `cbor:"3,keyasint"`
}

// Store is a badger backed collection of option sets. It is safe for
// concurrent use.
type Store struct {
	db  *badger.DB
	log observability.Logger
	now func() time.Time
}

// Opt configures Open.
type Opt func(*Store)

// WithLogger routes badger's own logging and store events to l.
func WithLogger(l observability.Logger) Opt {
	return func(s *Store) { s.log = l }
}

// Open opens the database in dir, creating it when missing. With
// inMemory set dir is ignored and nothing touches the disk.
func Open(dir string, inMemory bool, opts ...Opt) (*Store, error) {
	s := &Store{log: observability.NopLogger{}, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	var bo badger.Options
	if inMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if dir == "" {
			return nil, errors.New("store: path is required for a persistent store")
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", dir, err)
		}
		bo = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	bo = bo.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{l: s.log})
	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	s.db = db
	return s, nil
}

func scopeKey(scope string) ([]byte, error) {
	if scope == "" || strings.ContainsAny(scope, "\x00\n") {
		return nil, fmt.Errorf("store: invalid scope name %q", scope)
	}
	return []byte(scopePrefix + scope), nil
}

// Save replaces the set stored under scope.
func (s *Store) Save(scope string, set *option.Set) error {
	key, err := scopeKey(scope)
	if err != nil {
		return err
	}
	data, err := set.MarshalBinary()
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", scope, err)
	}
	rec, err := codec.Marshal(record{Version: recordVersion, SavedAt: s.now().Unix(), Options: data})
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, rec)
	})
	if err != nil {
		return fmt.Errorf("store: save %s: %w", scope, err)
	}
	s.log.Debug("options saved", observability.String("scope", scope), observability.Int("count", set.Count()))
	return nil
}

// Load decodes the set stored under scope. Every option is marked as
// persisted configuration.
func (s *Store) Load(env *object.Env, scope string) (*option.Set, error) {
	key, err := scopeKey(scope)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", scope, err)
	}
	var rec record
	if err := codec.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", scope, err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("store: %s has record version %d", scope, rec.Version)
	}
	set, err := option.UnmarshalSet(env, rec.Options)
	if err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", scope, err)
	}
	for _, o := range set.Options() {
		o.SetSource(option.SourcePersistedConfig)
	}
	return set, nil
}

// Delete removes scope.
func (s *Store) Delete(scope string) error {
	key, err := scopeKey(scope)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, scope)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// Scopes lists the stored scope names in order.
func (s *Store) Scopes() ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(scopePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, strings.TrimPrefix(string(it.Item().Key()), scopePrefix))
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger adapts observability.Logger to badger.Logger.
type badgerLogger struct {
	l observability.Logger
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
