package cache

import (
	"encoding/json"

	"embedctl/config"
	"embedctl/models"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

const (
	commandRPush  = "RPUSH"
	commandLTrim  = "LTRIM"
	commandLRange = "LRANGE"
	commandExpire = "EXPIRE"
	commandDel    = "DEL"
	commandPing   = "PING"
	replyPong     = "PONG"
)

// RedisStorage keeps each session journal in a list that expires ttl
// seconds after the last write and holds at most maxEvents entries.
type RedisStorage struct {
	cfg       config.RedisConf
	pool      *redis.Pool
	ttl       int64
	maxEvents int
}

func NewRedisStorage(cfg config.RedisConf, ttl int64, maxEvents int) (*RedisStorage, error) {
	pool := NewPool(cfg)
	conn, err := pool.Dial()
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis configuration url")
	}
	_ = conn.Close()

	return &RedisStorage{cfg: cfg, pool: pool, ttl: ttl, maxEvents: maxEvents}, nil
}

func (s *RedisStorage) CheckConn() error {
	conn := s.pool.Get()
	defer conn.Close()

	reply, err := redis.String(conn.Do(commandPing))
	if err != nil {
		return errors.Wrap(err, "connection failed")
	}

	if reply != replyPong {
		return errors.New("failed to receive ping response from redis")
	}

	return nil
}

func (s *RedisStorage) CloseConnection() error {
	return s.pool.Close()
}

func (s *RedisStorage) Append(event models.SessionEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session event")
	}

	conn := s.pool.Get()
	defer conn.Close()

	key := s.key(event.SessionID)
	if _, err = conn.Do(commandRPush, key, raw); err != nil {
		return errors.Wrapf(err, "failed to perform %s command, event wasn't saved", commandRPush)
	}
	if _, err = conn.Do(commandLTrim, key, -s.maxEvents, -1); err != nil {
		return errors.Wrapf(err, "failed to perform %s command", commandLTrim)
	}
	if _, err = conn.Do(commandExpire, key, s.ttl); err != nil {
		return errors.Wrapf(err, "failed to perform %s command", commandExpire)
	}

	return nil
}

func (s *RedisStorage) Events(sessionID string) ([]models.SessionEvent, error) {
	conn := s.pool.Get()
	defer conn.Close()

	raw, err := redis.ByteSlices(conn.Do(commandLRange, s.key(sessionID), 0, -1))
	if err == redis.ErrNil {
		return []models.SessionEvent{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to perform %s command, events weren't retrieved", commandLRange)
	}

	return decodeEvents(raw)
}

func (s *RedisStorage) Forget(sessionID string) error {
	conn := s.pool.Get()
	defer conn.Close()

	if _, err := conn.Do(commandDel, s.key(sessionID)); err != nil {
		return errors.Wrapf(err, "failed to perform %s command", commandDel)
	}
	return nil
}

func (s *RedisStorage) key(sessionID string) string {
	return s.cfg.KeyPrefix + bucketName(sessionID)
}
