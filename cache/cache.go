// Package cache 按 (输入哈希, profile) 缓存抠图结果
package cache

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/die-net/lrucache"
)

// Cache 实现需要并发安全
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

var _ Cache = &lrucache.LruCache{}

// LRU 按字节数限制容量，带过期时间
type LRU struct {
	*lrucache.LruCache
}

// NewLRU 最多保存 maxBytes 字节，每条最多保留 ttl；ttl 为 0 时只按容量淘汰
func NewLRU(maxBytes int64, ttl time.Duration) *LRU {
	return &LRU{LruCache: lrucache.New(maxBytes, int64(ttl.Seconds()))}
}

// Key 同一输入在同一 profile 下的缓存键
func Key(input []byte, profile string) string {
	return profile + ":" + strconv.FormatUint(xxhash.Sum64(input), 16) + ":" + strconv.Itoa(len(input))
}

// Nop 不缓存
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(string) ([]byte, bool) { return nil, false }
func (Nop) Set(string, []byte)        {}
func (Nop) Delete(string)             {}
