package cache

import (
	"encoding/json"
	"sort"

	"embedctl/config"
	"embedctl/models"

	"github.com/pkg/errors"
)

const (
	eventsBucketPrefix = "events_"
)

// Storage keeps the recent lifecycle events of every embed session. Entries
// carry snapshots only; credentials and tokens never reach it.
type Storage interface {
	CheckConn() error
	CloseConnection() error

	Append(event models.SessionEvent) error
	Events(sessionID string) ([]models.SessionEvent, error)
	Forget(sessionID string) error
}

func NewStorage(cfg config.CacheCfg) (Storage, error) {
	if cfg.Disable {
		return new(storageStub), nil
	}

	switch cfg.Type {
	case config.StorageTypeNutsDB:
		nutsdb, err := NewNutsDBStorage(cfg.NutsDB, cfg.TTL, cfg.EventsLimit())
		if err != nil {
			return nil, errors.Wrap(err, "nutsdb init storage err")
		}
		return nutsdb, nil
	default:
		redis, err := NewRedisStorage(cfg.Redis, cfg.TTL, cfg.EventsLimit())
		if err != nil {
			return nil, errors.Wrap(err, "redis init storage err")
		}
		return redis, nil
	}
}

func bucketName(sessionID string) string {
	return eventsBucketPrefix + sessionID
}

func decodeEvents(raw [][]byte) ([]models.SessionEvent, error) {
	events := make([]models.SessionEvent, 0, len(raw))
	for _, item := range raw {
		var event models.SessionEvent
		if err := json.Unmarshal(item, &event); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal session event")
		}
		events = append(events, event)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	return events, nil
}

type storageStub struct{}

func (s *storageStub) CheckConn() error { return nil }

func (s *storageStub) CloseConnection() error { return nil }

func (s *storageStub) Append(models.SessionEvent) error { return nil }

func (s *storageStub) Events(string) ([]models.SessionEvent, error) {
	return []models.SessionEvent{}, nil
}

func (s *storageStub) Forget(string) error { return nil }
