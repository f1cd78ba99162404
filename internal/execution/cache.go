package execution

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// fillCacheSize 保留最近成交的客户端订单号数量，远大于单日成交上限。
const fillCacheSize = 4096

// fillCache 按客户端订单号缓存成交结果，超出容量时淘汰最久未使用的记录。
type fillCache struct {
	entries *lru.Cache[string, Fill]
}

func newFillCache(size int) *fillCache {
	if size <= 0 {
		size = fillCacheSize
	}
	entries, err := lru.New[string, Fill](size)
	if err != nil {
		// 仅在 size<=0 时返回错误
		panic(err)
	}
	return &fillCache{entries: entries}
}

func (c *fillCache) get(clientOrderID string) (Fill, bool) {
	if clientOrderID == "" {
		return Fill{}, false
	}
	return c.entries.Get(clientOrderID)
}

func (c *fillCache) put(fill Fill) {
	if fill.ClientOrderID == "" {
		return
	}
	c.entries.Add(fill.ClientOrderID, fill)
}

func (c *fillCache) len() int {
	return c.entries.Len()
}
