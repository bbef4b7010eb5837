// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

import (
	"fmt"
)

// Storable is a record type that can be decoded from or encoded to on-disk
// bytes.  An efficient implementation copies a fixed-size struct in and out,
// but implementations are free to compress.
type Storable interface {
	// SerializedLen returns the exact number of bytes Serialize writes.
	SerializedLen() uint64
	// Serialize encodes the record into to, which is exactly SerializedLen bytes.
	Serialize(to []byte) error
	// Deserialize decodes the record starting at offset.  Malformed bytes
	// produce an error matching ErrDecode, never a default value.
	Deserialize(offset uint64, mem LinearStore) error
}

// PtrStorable constrains a type parameter to *T where *T is Storable, so
// that generic code can allocate a T and decode into it.
type PtrStorable[T any] interface {
	*T
	Storable
}

// ToDehydrated serializes item into a newly allocated buffer.
func ToDehydrated(item Storable) ([]byte, error) {
	buf := make([]byte, item.SerializedLen())
	if err := item.Serialize(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func deserialize[T any, P PtrStorable[T]](offset uint64, mem LinearStore) (P, error) {
	p := P(new(T))
	if err := p.Deserialize(offset, mem); err != nil {
		return nil, err
	}
	return p, nil
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
