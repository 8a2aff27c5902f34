package compiler

import (
	"crypto/sha256"

	"golang.org/x/sync/singleflight"

	"github.com/taintscript/seclua/cache"
	"github.com/taintscript/seclua/vm"
)

// Cache memoizes compiled chunks by source text, the same recompile-
// avoidance role gosec's own LRUCache played for its analyzer rule
// matches — adapted here as cache.LRUCache[cacheKey, *vm.Proto] (see
// cache/lru.go) plus a sha256 key derivation and a singleflight.Group
// that collapses concurrent Compile calls for the same source into a
// single Parse, which a bare LRU does not.
type Cache struct {
	lru   *cache.LRUCache[cacheKey, *vm.Proto]
	group singleflight.Group
}

type cacheKey [sha256.Size]byte

// NewCache creates a chunk cache holding at most capacity compiled
// chunks, evicting the least recently used on overflow.
func NewCache(capacity int) *Cache {
	return &Cache{lru: cache.New[cacheKey, *vm.Proto](capacity)}
}

func sourceKey(source, chunkName string) cacheKey {
	h := sha256.New()
	h.Write([]byte(chunkName))
	h.Write([]byte{0})
	h.Write([]byte(source))
	var k cacheKey
	copy(k[:], h.Sum(nil))
	return k
}

// Compile returns the cached *vm.Proto for (source, chunkName), compiling
// it at most once even under concurrent callers racing on the same
// source (singleflight.Group.Do keys on the string form of the cache
// key).
func (c *Cache) Compile(source, chunkName string) (*vm.Proto, error) {
	key := sourceKey(source, chunkName)
	if proto, ok := c.lru.Get(key); ok {
		return proto, nil
	}

	v, err, _ := c.group.Do(string(key[:]), func() (any, error) {
		if proto, ok := c.lru.Get(key); ok {
			return proto, nil
		}
		proto, err := Parse(source, chunkName)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, proto)
		return proto, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*vm.Proto), nil
}
