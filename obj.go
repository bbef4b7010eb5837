// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

import (
	"fmt"
)

// Obj owns a StoredView and tracks whether the in-memory item has diverged
// from the store.  A dirty Obj must be flushed (Close does this) before it
// is dropped; the cache does so on eviction.
//
// Direct construction via AddrToObj or ItemToObj is mostly useful for
// headers and metadata read at bootstrap; everything else should go
// through an ObjCache.
type Obj[T Storable] struct {
	value *StoredView[T]
	// length of the serialized item when dirty is set
	dirtyLen uint64
	dirty    bool
}

func fromStoredView[T Storable](v *StoredView[T]) *Obj[T] {
	return &Obj[T]{value: v}
}

func (o *Obj[T]) Addr() DiskAddress {
	return DiskAddress(o.value.offset)
}

// Item returns the decoded value.  Mutations must go through Modify.
func (o *Obj[T]) Item() T {
	return o.value.item
}

func (o *Obj[T]) IsDirty() bool {
	return o.dirty
}

// Modify runs f against the item and marks the Obj dirty.
//
// If the item no longer fits its length limit an error matching
// ErrObjWriteSize is returned.  The mutation made by f is not undone, but
// the Obj is left clean so the oversized value never reaches the store.
// Any earlier modification still waiting to be flushed is dropped along
// with it.  Callers must discard the Obj.
func (o *Obj[T]) Modify(f func(T)) error {
	f(o.value.item)

	n, ok := o.value.serializedLen()
	if !ok {
		o.clearDirty()
		return fmt.Errorf("%w: %s needs %d bytes, limit %d", ErrObjWriteSize, o.Addr(), o.value.item.SerializedLen(), o.value.lenLimit)
	}
	if !o.value.mem.IsWriteable() {
		o.clearDirty()
		return fmt.Errorf("modify %s: %w", o.Addr(), ErrImmutableWrite)
	}

	o.dirtyLen = n
	o.dirty = true
	return nil
}

// FlushDirty writes the item back to the store if it is dirty.  On failure
// the Obj stays dirty so the flush can be retried.
func (o *Obj[T]) FlushDirty() error {
	if !o.dirty {
		return nil
	}

	buf := make([]byte, o.dirtyLen)
	if err := o.value.item.Serialize(buf); err != nil {
		return fmt.Errorf("serialize %s: %w", o.Addr(), err)
	}
	if err := o.value.mem.Write(o.value.offset, buf); err != nil {
		return fmt.Errorf("write %s: %w", o.Addr(), err)
	}

	o.dirty = false
	o.dirtyLen = 0
	return nil
}

// Close flushes any pending state.  The Obj must not be used afterwards.
func (o *Obj[T]) Close() error {
	return o.FlushDirty()
}

// IntoInner flushes the Obj and returns its item, giving up the handle.
// The item is returned even if the flush fails.
func (o *Obj[T]) IntoInner() (T, error) {
	err := o.FlushDirty()
	return o.value.item, err
}

// clearDirty drops pending state without writing it; used for values that
// have been invalidated.
func (o *Obj[T]) clearDirty() {
	o.dirty = false
	o.dirtyLen = 0
}

func (o *Obj[T]) String() string {
	return fmt.Sprintf("Obj{value: %s, dirty: %t}", o.value, o.dirty)
}
