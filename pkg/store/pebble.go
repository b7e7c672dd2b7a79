package store

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"msgsync/pkg/logger"

	"github.com/cockroachdb/pebble"
)

var (
	db     *pebble.DB
	dbPath string

	// msgSeq is the process-wide insertion sequence used to break ties
	// between messages sharing the same nanosecond timestamp.
	msgSeq uint64

	// locks holds named mutexes for read-modify-write sections (thread rows,
	// delivery unions, the direct-pair create).
	locks sync.Map
)

// Open opens (or creates) a Pebble database at the given path and keeps a
// package-level handle.
func Open(path string) error {
	var err error
	logger.Log.Info("opening_pebble_db", zap.String("path", path))
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Log.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return err
	}
	dbPath = path
	resetEventSeqs()
	logger.Log.Info("pebble_opened", zap.String("path", path))
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Log.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// NextMsgSeq returns the next insertion sequence number.
func NextMsgSeq() uint64 {
	return atomic.AddUint64(&msgSeq, 1)
}

// Lock acquires the named mutex and returns its unlock func. Callers use it
// for compare-and-swap style sections; message appends only need it to pair
// the row write with its event seq allocation.
func Lock(name string) func() {
	v, _ := locks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// LockThread acquires the per-thread mutex.
func LockThread(threadID string) func() {
	return Lock("thread:" + threadID)
}

var errNotOpen = fmt.Errorf("pebble not opened; call store.Open first")

// Get returns the raw value for key, or models-level not-found semantics via
// pebble.ErrNotFound.
func Get(key string) ([]byte, error) {
	if db == nil {
		return nil, errNotOpen
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

// IsNotFound reports whether err is the store's missing-key error.
func IsNotFound(err error) bool {
	return err == pebble.ErrNotFound
}

// Set writes a key with durable sync.
func Set(key string, value []byte) error {
	if db == nil {
		return errNotOpen
	}
	return db.Set([]byte(key), value, pebble.Sync)
}

// Delete removes a key with durable sync.
func Delete(key string) error {
	if db == nil {
		return errNotOpen
	}
	return db.Delete([]byte(key), pebble.Sync)
}

// NewBatch returns a write batch; apply with ApplyBatch.
func NewBatch() *pebble.Batch {
	return new(pebble.Batch)
}

// ApplyBatch applies a write batch. State changes and their fanout events are
// committed through one batch so an event is never visible before the change
// it announces is durable.
func ApplyBatch(wb *pebble.Batch, sync bool) error {
	if db == nil {
		return errNotOpen
	}
	opt := pebble.NoSync
	if sync {
		opt = pebble.Sync
	}
	if err := db.Apply(wb, opt); err != nil {
		logger.Log.Error("apply_batch_failed", zap.Error(err))
		return err
	}
	return nil
}

// ScanPrefix iterates keys with the given prefix in ascending order, calling
// fn for each (key, value). fn returns false to stop early.
func ScanPrefix(prefix string, fn func(key string, value []byte) (bool, error)) error {
	return ScanRange(prefix, "", fn)
}

// ScanRange iterates keys with the given prefix starting at startKey (or the
// prefix itself when startKey is empty). Iteration order is ascending.
func ScanRange(prefix, startKey string, fn func(key string, value []byte) (bool, error)) error {
	if db == nil {
		return errNotOpen
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	start := pfx
	if startKey != "" {
		start = []byte(startKey)
	}
	for iter.SeekGE(start); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		k := string(iter.Key())
		v := append([]byte(nil), iter.Value()...)
		ok, err := fn(k, v)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	return iter.Error()
}

// LastKey returns the last key/value under prefix, or ("", nil, nil) when the
// prefix is empty.
func LastKey(prefix string) (string, []byte, error) {
	if db == nil {
		return "", nil, errNotOpen
	}
	pfx := []byte(prefix)
	upper := append(append([]byte(nil), pfx...), 0xff)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: pfx, UpperBound: upper})
	if err != nil {
		return "", nil, err
	}
	defer iter.Close()
	if !iter.Last() {
		return "", nil, iter.Error()
	}
	return string(iter.Key()), append([]byte(nil), iter.Value()...), iter.Error()
}
