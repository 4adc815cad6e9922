package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Item 包装缓存数据和过期时间
type Item struct {
	Data      interface{}
	ExpiresAt time.Time
}

// PageCache 页面片段缓存。惰性填充，只靠 TTL 过期，写操作不主动失效。
// 作为依赖注入给渲染层使用，而不是进程级单例。
type PageCache struct {
	lruCache *lru.Cache[string, Item]
}

func New(size int) (*PageCache, error) {
	l, err := lru.New[string, Item](size)
	if err != nil {
		return nil, err
	}
	return &PageCache{lruCache: l}, nil
}

// Set 设置缓存，TTL 为过期时间
func (c *PageCache) Set(key string, data interface{}, ttl time.Duration) {
	c.lruCache.Add(key, Item{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
	})
}

// Get 获取缓存，若不存在或已过期则返回 nil
func (c *PageCache) Get(key string) interface{} {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil
	}

	// 检查过期
	if time.Now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil
	}

	return val.Data
}

// Delete 删除指定缓存
func (c *PageCache) Delete(key string) {
	c.lruCache.Remove(key)
}

// Clear 清空全部缓存
func (c *PageCache) Clear() {
	c.lruCache.Purge()
}
