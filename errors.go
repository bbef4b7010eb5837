// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is returned when on-disk bytes can't be decoded into a record.
	ErrDecode = errors.New("malformed record")
	// ErrObjWriteSize is returned when a modified object no longer fits in the
	// space it was allocated.
	ErrObjWriteSize = errors.New("object cannot be written in the store provided")
	// ErrIO wraps failures reported by the backing medium.
	ErrIO = errors.New("io error")
	// ErrImmutableWrite is returned when writing to a read-only store.
	ErrImmutableWrite = errors.New("write on immutable store")
	// ErrInvalidCacheView is returned when an offset/length pair can't be read.
	ErrInvalidCacheView = errors.New("failed to create view")
	// ErrInvalidObj is returned for operations on an object in the wrong state.
	ErrInvalidObj = errors.New("obj invalid")
	// ErrInvalidAddress is returned when the null address is used to construct an object.
	ErrInvalidAddress = errors.New("invalid disk address")
	// ErrCheckedOut is returned when an address is already held by another reference.
	ErrCheckedOut = errors.New("address already checked out")
)

// InvalidObjError describes why an object operation was rejected.  It
// matches ErrInvalidObj with errors.Is.
type InvalidObjError struct {
	Addr    DiskAddress
	ObjType string
	Reason  string
}

func (e *InvalidObjError) Error() string {
	return fmt.Sprintf("obj invalid: %s obj: %s error: %s", e.Addr, e.ObjType, e.Reason)
}

func (e *InvalidObjError) Unwrap() error {
	return ErrInvalidObj
}

func invalidView(offset, length uint64) error {
	return fmt.Errorf("%w: offset: %d size: %d", ErrInvalidCacheView, offset, length)
}
