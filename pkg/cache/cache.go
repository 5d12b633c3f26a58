package cache

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrKeyExists = errors.New("key already exists in cache")

// Cache is a weight bounded LRU cache keyed by string.
type Cache[V any] interface {
	SetVerbose(verbose bool)
	GetWeight() int
	GetBudget() int
	Insert(key string, value V, weight int) error
	Upsert(key string, value V, weight int)
	Retrieve(key string) (V, bool)
	Remove(key string) bool
	Clear()
}

type cacheNode[V any] struct {
	next   *cacheNode[V]
	prev   *cacheNode[V]
	key    string
	value  V
	weight int
}

type cache[V any] struct {
	log *logrus.Entry

	mutex   sync.Mutex
	head    *cacheNode[V]
	tail    *cacheNode[V]
	lookup  map[string]*cacheNode[V]
	weight  int
	budget  int
	verbose bool
}

// NewCache initializes and returns a new cache with a given weight budget.
func NewCache[V any](budget int) Cache[V] {
	return &cache[V]{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		lookup: make(map[string]*cacheNode[V]),
		budget: budget,
	}
}

// SetVerbose sets the verbosity of cache operation logging.
func (c *cache[V]) SetVerbose(verbose bool) {
	c.mutex.Lock()
	c.verbose = verbose
	c.mutex.Unlock()
}

func (c *cache[V]) GetWeight() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.weight
}

func (c *cache[V]) GetBudget() int {
	return c.budget
}

// Insert adds a new item to the cache. ErrKeyExists is returned if the key is
// already cached. Least recently used items are evicted until the cache fits
// its budget.
func (c *cache[V]) Insert(key string, value V, weight int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, found := c.lookup[key]; found {
		return ErrKeyExists
	}

	c.pushFront(key, value, weight)
	c.evict()
	return nil
}

// Upsert inserts or replaces the item stored under key.
func (c *cache[V]) Upsert(key string, value V, weight int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, found := c.lookup[key]; found {
		c.unlink(node)
	}

	c.pushFront(key, value, weight)
	c.evict()
}

// Retrieve fetches an item by key and marks it as recently used.
func (c *cache[V]) Retrieve(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	node, found := c.lookup[key]
	if !found {
		var zero V
		return zero, false
	}

	if node != c.head {
		c.unlink(node)
		c.pushFront(node.key, node.value, node.weight)
	}

	return node.value, true
}

func (c *cache[V]) Remove(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	node, found := c.lookup[key]
	if !found {
		return false
	}
	c.unlink(node)
	return true
}

// Clear removes all items from the cache.
func (c *cache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.head = nil
	c.tail = nil
	c.lookup = make(map[string]*cacheNode[V])
	c.weight = 0
}

func (c *cache[V]) pushFront(key string, value V, weight int) {
	node := &cacheNode[V]{
		key:    key,
		value:  value,
		weight: weight,
		next:   c.head,
	}

	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}

	c.lookup[key] = node
	c.weight += weight
}

func (c *cache[V]) unlink(node *cacheNode[V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}

	node.next = nil
	node.prev = nil
	c.weight -= node.weight
	delete(c.lookup, node.key)
}

func (c *cache[V]) evict() {
	for c.weight > c.budget && c.tail != nil {
		evicted := c.tail
		c.unlink(evicted)

		if c.verbose {
			c.log.WithFields(logrus.Fields{
				"key":          evicted.key,
				"weight":       evicted.weight,
				"spare_budget": c.budget - c.weight,
			}).Debug("cache eviction")
		}
	}
}
