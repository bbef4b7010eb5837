// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

import (
	"fmt"
)

// StoredView binds a decoded item to the offset it lives at and the store
// it came from.  item always reflects what is in memory, which may be ahead
// of the store until the owning Obj is flushed.
type StoredView[T Storable] struct {
	item   T
	mem    LinearStore
	offset uint64
	// if the serialized length of item is greater than this, it can't be
	// written back in place.
	lenLimit uint64
}

func newStoredView[T any, P PtrStorable[T]](offset, lenLimit uint64, store LinearStore) (*StoredView[P], error) {
	item, err := deserialize[T, P](offset, store)
	if err != nil {
		return nil, err
	}
	return &StoredView[P]{
		item:     item,
		mem:      store.GetShared(),
		offset:   offset,
		lenLimit: lenLimit,
	}, nil
}

func fromHydrated[T Storable](offset, lenLimit uint64, item T, store LinearStore) *StoredView[T] {
	return &StoredView[T]{
		item:     item,
		mem:      store.GetShared(),
		offset:   offset,
		lenLimit: lenLimit,
	}
}

func (v *StoredView[T]) Item() T {
	return v.item
}

func (v *StoredView[T]) Offset() uint64 {
	return v.offset
}

func (v *StoredView[T]) LenLimit() uint64 {
	return v.lenLimit
}

// serializedLen returns the serialized length of item, or false if it
// exceeds the length limit.
func (v *StoredView[T]) serializedLen() (uint64, bool) {
	n := v.item.SerializedLen()
	if n > v.lenLimit {
		return 0, false
	}
	return n, true
}

func (v *StoredView[T]) String() string {
	return fmt.Sprintf("StoredView{item: %v, offset: %d, lenLimit: %d}", v.item, v.offset, v.lenLimit)
}

// AddrToObj decodes the record at addr into a new, clean Obj.
func AddrToObj[T any, P PtrStorable[T]](store LinearStore, addr DiskAddress, lenLimit uint64) (*Obj[P], error) {
	if addr.IsNull() {
		return nil, fmt.Errorf("AddrToObj: %w", ErrInvalidAddress)
	}
	v, err := newStoredView[T, P](addr.Get(), lenLimit, store)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", addr, err)
	}
	return fromStoredView(v), nil
}

// ItemToObj wraps an already built item destined for addr.  Nothing is
// written until the returned Obj is modified and flushed.
func ItemToObj[T Storable](store LinearStore, addr DiskAddress, lenLimit uint64, item T) (*Obj[T], error) {
	if addr.IsNull() {
		return nil, fmt.Errorf("ItemToObj: %w", ErrInvalidAddress)
	}
	return fromStoredView(fromHydrated(addr.Get(), lenLimit, item, store)), nil
}

// Slice derives an Obj over the sub-range [offset, offset+length) of
// parent.  Dirty parents are rejected: their on-disk layout is stale, so
// an offset into it is meaningless.
func Slice[U Storable, T Storable](parent *Obj[T], offset, length uint64, item U) (*Obj[U], error) {
	addr := parent.value.offset + offset
	if parent.IsDirty() {
		return nil, &InvalidObjError{
			Addr:    DiskAddress(addr),
			ObjType: typeName(parent.value.item),
			Reason:  "dirty write",
		}
	}
	return fromStoredView(fromHydrated(addr, length, item, parent.value.mem)), nil
}
