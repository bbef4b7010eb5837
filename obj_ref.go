// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

// ObjRef is a checked-out Obj borrowed from an ObjCache.  Only one ObjRef
// exists per address at a time.  Release must be called when done; it
// returns the Obj to the cache, or drops it unwritten if the address was
// invalidated while checked out.
//
// An ObjRef is not safe for concurrent use.
type ObjRef[T Storable] struct {
	inner *Obj[T]
	cache *ObjCache[T]
}

func newObjRef[T Storable](inner *Obj[T], cache *ObjCache[T]) *ObjRef[T] {
	return &ObjRef[T]{
		inner: inner,
		cache: cache,
	}
}

func (r *ObjRef[T]) obj() *Obj[T] {
	if r.inner == nil {
		panic("shale: use of released ObjRef")
	}
	return r.inner
}

func (r *ObjRef[T]) Addr() DiskAddress {
	return r.obj().Addr()
}

func (r *ObjRef[T]) Item() T {
	return r.obj().Item()
}

func (r *ObjRef[T]) IsDirty() bool {
	return r.obj().IsDirty()
}

// Obj exposes the underlying handle, e.g. to Slice it.  It remains owned
// by the ObjRef.
func (r *ObjRef[T]) Obj() *Obj[T] {
	return r.obj()
}

// Write modifies the item and records its address in the cache's dirty set.
func (r *ObjRef[T]) Write(f func(T)) error {
	o := r.obj()
	if err := o.Modify(f); err != nil {
		return err
	}
	r.cache.markDirty(o.Addr())
	return nil
}

// Release hands the Obj back to the cache.  Any error comes from flushing
// an entry evicted to make room.  Releasing twice is a no-op.
func (r *ObjRef[T]) Release() error {
	if r.inner == nil {
		return nil
	}
	o := r.inner
	r.inner = nil
	return r.cache.release(o)
}

// IntoPtr releases the reference and returns its address.
func (r *ObjRef[T]) IntoPtr() (DiskAddress, error) {
	addr := r.Addr()
	return addr, r.Release()
}

// IntoInner consumes the reference and returns the decoded item.  Pending
// writes are flushed first unless the address was invalidated; the Obj is
// not returned to the cache.
func (r *ObjRef[T]) IntoInner() (T, error) {
	o := r.obj()
	r.inner = nil
	return r.cache.takeOut(o)
}
