// Copyright 2021-2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	defaultCacheSize = 128
	defaultCacheTTL  = 3600
)

var (
	ErrCacheMiss = errors.New("key not in cache")
)

type cacheItem struct {
	val     []byte
	expires time.Time
}

var (
	rdb       *redis.Client
	cache     *lru.Cache
	cacheOnce sync.Once
)

// SetupCache initializes the in-process LRU and, if `cache.redis` is set, the redis
// client that backs it
func SetupCache() error {
	var err error

	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return err
		}

		rdb = redis.NewClient(opt)
	}

	size := viper.GetInt("cache.local_size")
	if size <= 0 {
		size = defaultCacheSize
	}

	cache, err = lru.New(size)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		return err
	}

	return nil
}

func ensureCache() {
	cacheOnce.Do(func() {
		if cache != nil {
			return
		}
		if err := SetupCache(); err != nil {
			// fall back to a local-only cache
			cache, _ = lru.New(defaultCacheSize)
		}
	})
}

// CacheTTL returns the configured time-to-live for cached entries
func CacheTTL() time.Duration {
	ttl := viper.GetInt("cache.ttl")
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return time.Duration(ttl) * time.Second
}

// CacheSet compresses bytes and stores them under key
func CacheSet(ctx context.Context, key string, bytes []byte) error {
	ensureCache()

	b2, err := Compress(bytes)
	if err != nil {
		return err
	}

	expires := CacheTTL()
	cache.Add(key, &cacheItem{val: b2, expires: time.Now().Add(expires)})

	if rdb != nil {
		return rdb.Set(ctx, key, b2, expires).Err()
	}
	return nil
}

// CacheGet returns the decompressed bytes stored under key or ErrCacheMiss
func CacheGet(ctx context.Context, key string) ([]byte, error) {
	ensureCache()

	if v, ok := cache.Get(key); ok {
		item := v.(*cacheItem)
		if time.Now().Before(item.expires) {
			return Decompress(item.val)
		}
		cache.Remove(key)
	}

	if rdb != nil {
		val, err := rdb.GetEx(ctx, key, CacheTTL()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrCacheMiss
			}
			return nil, err
		}
		cache.Add(key, &cacheItem{val: val, expires: time.Now().Add(CacheTTL())})
		return Decompress(val)
	}

	return nil, ErrCacheMiss
}

// CachePurge removes all entries from the local cache
func CachePurge() {
	ensureCache()
	cache.Purge()
}
