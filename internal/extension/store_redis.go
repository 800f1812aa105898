package extension

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore 基于Redis的扩展存储，每条记录一个key，值为JSON
type RedisStore struct {
	rdb       *redis.Client
	keyPrefix string
}

// NewRedisStore 创建Redis存储，keyPrefix 用于隔离多个宿主实例（可为空）
func NewRedisStore(rdb *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{rdb: rdb, keyPrefix: keyPrefix}
}

type redisRecord struct {
	Data    []byte `json:"data"`
	Version int64  `json:"version"`
}

func (s *RedisStore) key(name string) string {
	return s.keyPrefix + name
}

func (s *RedisStore) Create(ctx context.Context, name string, data []byte) (*ExtensionStore, error) {
	payload, err := json.Marshal(redisRecord{Data: data, Version: 1})
	if err != nil {
		return nil, storageError(err)
	}
	ok, err := s.rdb.SetNX(ctx, s.key(name), payload, 0).Result()
	if err != nil {
		return nil, storageError(err)
	}
	if !ok {
		return nil, ErrAlreadyExists.WithMessage("extension %s already exists", name)
	}
	return &ExtensionStore{Name: name, Data: data, Version: 1}, nil
}

func (s *RedisStore) Update(ctx context.Context, name string, version int64, data []byte) (*ExtensionStore, error) {
	var updated *ExtensionStore
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, name)
		if err != nil {
			return err
		}
		if current.Version != version {
			return ErrVersionConflict.WithMessage("extension %s version conflict: expected %d, got %d", name, current.Version, version)
		}
		payload, err := json.Marshal(redisRecord{Data: data, Version: version + 1})
		if err != nil {
			return storageError(err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key(name), payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &ExtensionStore{Name: name, Data: data, Version: version + 1}
		return nil
	}, s.key(name))
	if err != nil {
		return nil, translateRedisError(err)
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, name string, version int64) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, name)
		if err != nil {
			return err
		}
		if version != 0 && current.Version != version {
			return ErrVersionConflict.WithMessage("extension %s version conflict: expected %d, got %d", name, current.Version, version)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.key(name))
			return nil
		})
		return err
	}, s.key(name))
	return translateRedisError(err)
}

func (s *RedisStore) Get(ctx context.Context, name string) (*ExtensionStore, error) {
	record, err := s.read(ctx, s.rdb, name)
	if err != nil {
		return nil, translateRedisError(err)
	}
	return record, nil
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]*ExtensionStore, error) {
	records := make([]*ExtensionStore, 0)
	iter := s.rdb.Scan(ctx, 0, s.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		name := iter.Val()[len(s.keyPrefix):]
		record, err := s.read(ctx, s.rdb, name)
		if err != nil {
			if errors.Is(err, ErrExtensionMissing) {
				continue
			}
			return nil, translateRedisError(err)
		}
		records = append(records, record)
	}
	if err := iter.Err(); err != nil {
		return nil, storageError(err)
	}

	sortRecords(records)
	return records, nil
}

func (s *RedisStore) read(ctx context.Context, cmd redis.Cmdable, name string) (*ExtensionStore, error) {
	raw, err := cmd.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrExtensionMissing.WithMessage("extension %s not found", name)
		}
		return nil, err
	}
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &ExtensionStore{Name: name, Data: rec.Data, Version: rec.Version}, nil
}

func translateRedisError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict.WithCause(err)
	}
	if errors.Is(err, ErrExtensionMissing) || errors.Is(err, ErrVersionConflict) {
		return err
	}
	return storageError(err)
}

var _ Store = (*RedisStore)(nil)
