// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// addrState is where an address is, from the cache's point of view.
type addrState uint8

const (
	stateAbsent addrState = iota
	stateResident
	stateCheckedOut
	// checked out, but invalidated by Pop: must never be written back.
	stateCheckedOutDiscard
)

func (s addrState) String() string {
	switch s {
	case stateAbsent:
		return "absent"
	case stateResident:
		return "resident"
	case stateCheckedOut:
		return "checked-out"
	case stateCheckedOutDiscard:
		return "checked-out(discard)"
	default:
		return fmt.Sprintf("addrState(%d)", uint8(s))
	}
}

// ObjCache is a bounded, write-back cache of Objs keyed by address.  It
// hands out at most one ObjRef per address, remembers which addresses are
// dirty, and provides the FlushDirty barrier used at commit.
//
// All methods take a single lock and must not be called from within a
// Storable method invoked by the cache.
type ObjCache[T Storable] struct {
	mu       sync.Mutex
	capacity int
	// objects not checked out, eligible for eviction
	cached *simplelru.LRU[DiskAddress, *Obj[T]]
	// every checked-out address; values are stateCheckedOut or stateCheckedOutDiscard
	checkedOut map[DiskAddress]addrState
	dirty      map[DiskAddress]struct{}
	// bumped on every write-back, so decodes that raced one can be retried
	flushEpoch uint64
	logger     *slog.Logger
	stats      cacheCounters
}

var errStaleDecode = errors.New("decoded before a concurrent write-back")

// NewObjCache returns a cache holding at most capacity resident objects.
// It panics if capacity is not positive.
func NewObjCache[T Storable](capacity int, opts ...CacheOption) *ObjCache[T] {
	if capacity <= 0 {
		panic("shale: non-zero cache size required")
	}
	options := defaultCacheOptions()
	for _, opt := range opts {
		opt(&options)
	}
	// one spare slot: we evict ourselves in insertLocked so the evicted Obj
	// can be flushed and its error reported.
	cached, err := simplelru.NewLRU[DiskAddress, *Obj[T]](capacity+1, nil)
	if err != nil {
		panic(fmt.Errorf("simplelru.NewLRU: %w", err))
	}
	return &ObjCache[T]{
		capacity:   capacity,
		cached:     cached,
		checkedOut: make(map[DiskAddress]addrState),
		dirty:      make(map[DiskAddress]struct{}),
		logger:     options.logger,
	}
}

func (c *ObjCache[T]) stateLocked(addr DiskAddress) addrState {
	if s, ok := c.checkedOut[addr]; ok {
		return s
	}
	if c.cached.Contains(addr) {
		return stateResident
	}
	return stateAbsent
}

// Get checks out the resident Obj at addr.  ok is false on a miss, in
// which case the caller decodes the Obj from the store and calls Put.
func (c *ObjCache[T]) Get(addr DiskAddress) (ref *ObjRef[T], ok bool, err error) {
	ref, ok, _, err = c.get(addr, false)
	return
}

// get checks out addr if it is resident.  Lookups retried after a stale
// decode were already counted as a miss and update no stats.
func (c *ObjCache[T]) get(addr DiskAddress, retry bool) (ref *ObjRef[T], ok bool, epoch uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.stateLocked(addr) {
	case stateCheckedOut, stateCheckedOutDiscard:
		return nil, false, 0, fmt.Errorf("get %s: %w", addr, ErrCheckedOut)
	case stateResident:
		obj, _ := c.cached.Peek(addr)
		c.cached.Remove(addr)
		c.checkedOut[addr] = stateCheckedOut
		if !retry {
			c.stats.hits.Add(1)
		}
		return newObjRef(obj, c), true, c.flushEpoch, nil
	default:
		if !retry {
			c.stats.misses.Add(1)
		}
		return nil, false, c.flushEpoch, nil
	}
}

// Put checks out an Obj the caller constructed itself.  A resident entry
// for the same address is flushed and replaced.
func (c *ObjCache[T]) Put(obj *Obj[T]) (*ObjRef[T], error) {
	return c.put(obj, nil)
}

// put checks out obj.  decodedAt is set when obj was just decoded from the
// store: a resident copy is then preferred, and if anything was written
// back since the miss the decode may be stale and errStaleDecode is returned.
func (c *ObjCache[T]) put(obj *Obj[T], decodedAt *uint64) (*ObjRef[T], error) {
	addr := obj.Addr()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.stateLocked(addr) {
	case stateCheckedOut, stateCheckedOutDiscard:
		return nil, fmt.Errorf("put %s: %w", addr, ErrCheckedOut)
	case stateAbsent:
		if decodedAt != nil && *decodedAt != c.flushEpoch {
			return nil, errStaleDecode
		}
	case stateResident:
		old, _ := c.cached.Peek(addr)
		if decodedAt != nil {
			obj = old
			break
		}
		if err := c.flushLocked(old); err != nil {
			return nil, err
		}
		delete(c.dirty, addr)
	}
	c.cached.Remove(addr)
	c.checkedOut[addr] = stateCheckedOut
	return newObjRef(obj, c), nil
}

// PutItem checks out a freshly built item destined for addr, which the
// allocator has just handed out.  The item is marked dirty so that it
// reaches the store.
func (c *ObjCache[T]) PutItem(store LinearStore, addr DiskAddress, lenLimit uint64, item T) (*ObjRef[T], error) {
	obj, err := ItemToObj(store, addr, lenLimit, item)
	if err != nil {
		return nil, err
	}
	ref, err := c.Put(obj)
	if err != nil {
		return nil, err
	}
	if err := ref.Write(func(T) {}); err != nil {
		// never let an item that can't be written become resident
		c.Pop(addr)
		_ = ref.Release()
		return nil, err
	}
	return ref, nil
}

// GetItem checks out the Obj at addr, decoding it from store on a miss.
func GetItem[T any, P PtrStorable[T]](c *ObjCache[P], store LinearStore, addr DiskAddress, lenLimit uint64) (*ObjRef[P], error) {
	for retry := false; ; retry = true {
		ref, ok, epoch, err := c.get(addr, retry)
		if err != nil {
			return nil, err
		}
		if ok {
			return ref, nil
		}
		obj, err := AddrToObj[T, P](store, addr, lenLimit)
		if err != nil {
			return nil, err
		}
		ref, err = c.put(obj, &epoch)
		if errors.Is(err, errStaleDecode) {
			continue
		}
		return ref, err
	}
}

// Pop invalidates addr.  A resident Obj is dropped without being flushed;
// a checked-out one is dropped, unflushed, when its ObjRef is released.
func (c *ObjCache[T]) Pop(addr DiskAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.stateLocked(addr) {
	case stateCheckedOut:
		c.checkedOut[addr] = stateCheckedOutDiscard
	case stateResident:
		obj, _ := c.cached.Peek(addr)
		obj.clearDirty()
		c.cached.Remove(addr)
	}
	delete(c.dirty, addr)
}

// FlushDirty writes back every dirty resident Obj.  It returns false,
// without writing anything, if any address is checked out: a checked-out
// Obj may be mid-mutation.  Addresses that fail to flush stay dirty.
func (c *ObjCache[T]) FlushDirty() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.checkedOut); n > 0 {
		c.logger.Debug("flush deferred", "checkedOut", n)
		return false, nil
	}

	var errs []error
	flushed := 0
	for addr := range c.dirty {
		if obj, ok := c.cached.Peek(addr); ok {
			if err := c.flushLocked(obj); err != nil {
				errs = append(errs, err)
				continue
			}
			flushed++
		}
		delete(c.dirty, addr)
	}
	c.logger.Debug("flushed dirty objects", "count", flushed, "failed", len(errs))

	return true, errors.Join(errs...)
}

// Len returns the number of resident objects.
func (c *ObjCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached.Len()
}

// CheckedOut returns the number of outstanding ObjRefs.
func (c *ObjCache[T]) CheckedOut() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.checkedOut)
}

// DirtyLen returns the number of addresses in the dirty set.
func (c *ObjCache[T]) DirtyLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

func (c *ObjCache[T]) Stats() Stats {
	return c.stats.snapshot()
}

func (c *ObjCache[T]) ResetStats() {
	c.stats.reset()
}

func (c *ObjCache[T]) markDirty(addr DiskAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked(addr) == stateCheckedOutDiscard {
		return
	}
	c.dirty[addr] = struct{}{}
}

func (c *ObjCache[T]) release(obj *Obj[T]) error {
	addr := obj.Addr()

	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.stateLocked(addr)
	delete(c.checkedOut, addr)

	switch state {
	case stateCheckedOutDiscard:
		obj.clearDirty()
		delete(c.dirty, addr)
		return nil
	case stateCheckedOut, stateAbsent:
		return c.insertLocked(addr, obj)
	case stateResident:
		panic(fmt.Errorf("invariant broken: released %s while resident", addr))
	default:
		panic(fmt.Errorf("invariant broken: unknown state %s for %s", state, addr))
	}
}

func (c *ObjCache[T]) takeOut(obj *Obj[T]) (T, error) {
	addr := obj.Addr()

	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.stateLocked(addr)
	delete(c.checkedOut, addr)
	delete(c.dirty, addr)

	if state == stateCheckedOutDiscard {
		obj.clearDirty()
		return obj.Item(), nil
	}
	err := c.flushLocked(obj)
	return obj.Item(), err
}

// insertLocked makes obj resident, evicting (and flushing) the least
// recently used entries beyond capacity.
func (c *ObjCache[T]) insertLocked(addr DiskAddress, obj *Obj[T]) error {
	c.cached.Add(addr, obj)

	var errs []error
	for c.cached.Len() > c.capacity {
		evictedAddr, evicted, ok := c.cached.RemoveOldest()
		if !ok {
			break
		}
		c.stats.evictions.Add(1)
		c.logger.Debug("evicting object", "addr", evictedAddr, "dirty", evicted.IsDirty())
		if err := c.flushLocked(evicted); err != nil {
			errs = append(errs, err)
		}
		delete(c.dirty, evictedAddr)
	}
	return errors.Join(errs...)
}

func (c *ObjCache[T]) flushLocked(obj *Obj[T]) error {
	if !obj.IsDirty() {
		return nil
	}
	if err := obj.FlushDirty(); err != nil {
		c.logger.Error("flush failed", "addr", obj.Addr(), "err", err)
		return err
	}
	c.flushEpoch++
	c.stats.flushes.Add(1)
	return nil
}
