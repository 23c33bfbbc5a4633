package config

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	StorageTypeRedis  = "redis"
	StorageTypeNutsDB = "nutsdb"

	DefaultMaxEvents = 256
)

type CacheCfg struct {
	Disable bool   `json:"disable" yaml:"disable"`
	Type    string `json:"type" yaml:"type"`
	TTL     int64  `json:"ttl" yaml:"ttl"` // seconds a journal entry is kept

	// MaxEvents caps the journal of one session; older entries are dropped.
	// Zero means DefaultMaxEvents.
	MaxEvents int `json:"max_events" yaml:"max_events"`

	Redis  RedisConf `json:"redis" yaml:"redis"`
	NutsDB NutsDBCfg `json:"nutsdb" yaml:"nutsdb"`
}

func (cfg CacheCfg) EventsLimit() int {
	if cfg.MaxEvents <= 0 {
		return DefaultMaxEvents
	}
	return cfg.MaxEvents
}

func (cfg CacheCfg) Validate() error {
	if cfg.Disable {
		return nil
	}

	validators := []*validation.FieldRules{
		validation.Field(&cfg.Type, validation.Required, validation.In(StorageTypeRedis, StorageTypeNutsDB)),
		validation.Field(&cfg.TTL, validation.Required, validation.Min(1)),
		validation.Field(&cfg.MaxEvents, validation.Min(0)),
	}

	switch cfg.Type {
	case StorageTypeNutsDB:
		validators = append(validators, validation.Field(&cfg.NutsDB, validation.Required))
	case StorageTypeRedis:
		validators = append(validators, validation.Field(&cfg.Redis, validation.Required))
	}
	return validation.ValidateStruct(&cfg, validators...)
}
