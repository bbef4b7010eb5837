// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

// StoreID identifies a LinearStore instance.
type StoreID uint8

// InvalidStoreID is the id of a store that was never assigned one.
const InvalidStoreID StoreID = 0xff

// LinearStoreView is a pinned, readable copy of a range of a LinearStore.
type LinearStoreView interface {
	Bytes() []byte
}

// ByteView is a LinearStoreView over bytes the store has already copied out.
type ByteView []byte

func (v ByteView) Bytes() []byte {
	return v
}

// LinearStore is a byte-addressable store, usually backed by a cached or
// memory-mapped pool of intervals from a persistent medium.  Writes are
// visible to every subsequent view of the same store immediately; getting
// them onto the medium is the implementation's job.
//
// Concurrent reads are safe.  Callers must serialize writes to the same
// range themselves.
type LinearStore interface {
	// GetView returns a view of length bytes starting at offset, or false
	// if the range can't be read.
	GetView(offset, length uint64) (LinearStoreView, bool)

	// GetShared returns a handle that allows shared access to this store.
	GetShared() LinearStore

	// Write stores change at offset.  Failures of the medium match ErrIO,
	// writes to a read-only store match ErrImmutableWrite.
	Write(offset uint64, change []byte) error

	// ID returns the identifier of this store.
	ID() StoreID

	// IsWriteable reports whether Write can succeed.
	IsWriteable() bool
}

// ReadView returns the length bytes at offset.  Unreadable or short ranges
// produce an error matching ErrInvalidCacheView.
func ReadView(mem LinearStore, offset, length uint64) ([]byte, error) {
	view, ok := mem.GetView(offset, length)
	if !ok {
		return nil, invalidView(offset, length)
	}
	b := view.Bytes()
	if uint64(len(b)) != length {
		return nil, invalidView(offset, length)
	}
	return b, nil
}
