package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"embedctl/config"
	"embedctl/models"

	"github.com/pkg/errors"
	"github.com/xujiajun/nutsdb"
)

// NutsDBStorage keeps one bucket per session; every event is its own entry
// with the journal ttl. A bucket holds at most maxEvents entries.
type NutsDBStorage struct {
	cfg       config.NutsDBCfg
	conn      *nutsdb.DB
	ttl       uint32
	seq       uint64
	maxEvents int

	// buckets lists sessions written by this process; nutsdb reports a
	// missing bucket as an error, so unknown sessions are answered directly.
	mutex   sync.RWMutex
	buckets map[string]struct{}
}

func NewNutsDBStorage(cfg config.NutsDBCfg, ttl int64, maxEvents int) (*NutsDBStorage, error) {
	options := nutsdb.DefaultOptions
	options.Dir = cfg.Path
	options.SyncEnable = cfg.SyncEnable
	if cfg.SegmentSize > 0 {
		options.SegmentSize = cfg.SegmentSize
	}

	conn, err := nutsdb.Open(options)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to initialize the nutsdb store")
	}

	return &NutsDBStorage{
		cfg:       cfg,
		conn:      conn,
		ttl:       uint32(ttl),
		maxEvents: maxEvents,
		buckets:   map[string]struct{}{},
	}, nil
}

func (b *NutsDBStorage) CheckConn() error {
	return b.conn.View(func(tx *nutsdb.Tx) error { return nil })
}

func (b *NutsDBStorage) CloseConnection() error {
	return b.conn.Close()
}

func (b *NutsDBStorage) Append(event models.SessionEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session event")
	}

	bucket := bucketName(event.SessionID)
	key := []byte(fmt.Sprintf("%020d_%06d", time.Now().UTC().UnixNano(), atomic.AddUint64(&b.seq, 1)%1000000))

	known := b.known(bucket)
	err = b.conn.Update(func(tx *nutsdb.Tx) error {
		if known {
			if err := b.trim(tx, bucket, b.maxEvents-1); err != nil {
				return err
			}
		}
		return tx.Put(bucket, key, raw, b.ttl)
	})
	if err != nil {
		return errors.Wrap(err, "failed to save session event")
	}

	b.mutex.Lock()
	b.buckets[bucket] = struct{}{}
	b.mutex.Unlock()
	return nil
}

func (b *NutsDBStorage) Events(sessionID string) ([]models.SessionEvent, error) {
	bucket := bucketName(sessionID)
	if !b.known(bucket) {
		return []models.SessionEvent{}, nil
	}

	var raw [][]byte
	err := b.conn.View(func(tx *nutsdb.Tx) error {
		entries, err := tx.GetAll(bucket)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			raw = append(raw, entry.Value)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session events from nutsdb")
	}

	return decodeEvents(raw)
}

func (b *NutsDBStorage) Forget(sessionID string) error {
	bucket := bucketName(sessionID)
	if !b.known(bucket) {
		return nil
	}

	err := b.conn.Update(func(tx *nutsdb.Tx) error {
		entries, err := tx.GetAll(bucket)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := tx.Delete(bucket, entry.Key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to drop session events")
	}

	b.mutex.Lock()
	delete(b.buckets, bucket)
	b.mutex.Unlock()
	return nil
}

// trim drops the oldest entries of bucket until at most keep remain. Keys
// are zero padded timestamps, so byte order is write order.
func (b *NutsDBStorage) trim(tx *nutsdb.Tx, bucket string, keep int) error {
	entries, err := tx.GetAll(bucket)
	if err != nil {
		// every entry has expired
		return nil
	}
	if keep < 0 {
		keep = 0
	}
	if len(entries) <= keep {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].Key, entries[j].Key) < 0 })
	for _, entry := range entries[:len(entries)-keep] {
		if err := tx.Delete(bucket, entry.Key); err != nil {
			return err
		}
	}
	return nil
}

func (b *NutsDBStorage) known(bucket string) bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	_, ok := b.buckets[bucket]
	return ok
}
