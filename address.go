// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

import (
	"encoding/binary"
	"fmt"
)

// DiskAddressSize is the serialized length of a DiskAddress.
const DiskAddressSize = 8

// DiskAddress is an offset into a LinearStore.  The zero value is the
// null address; no record ever lives at offset 0.
type DiskAddress uint64

func (a DiskAddress) IsNull() bool {
	return a == 0
}

// Get returns the raw offset.
func (a DiskAddress) Get() uint64 {
	return uint64(a)
}

func (a DiskAddress) Add(n uint64) DiskAddress {
	return a + DiskAddress(n)
}

func (a DiskAddress) Bytes() [DiskAddressSize]byte {
	var buf [DiskAddressSize]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(a))
	return buf
}

func (a DiskAddress) String() string {
	if a.IsNull() {
		return "null"
	}
	return fmt.Sprintf("0x%x", uint64(a))
}

// DiskAddressFromBytes decodes a little-endian address.
func DiskAddressFromBytes(b []byte) (DiskAddress, error) {
	if len(b) != DiskAddressSize {
		return 0, fmt.Errorf("%w: invalid address length expected: %d found: %d", ErrDecode, DiskAddressSize, len(b))
	}
	return DiskAddress(binary.LittleEndian.Uint64(b)), nil
}

func (a *DiskAddress) SerializedLen() uint64 {
	return DiskAddressSize
}

func (a *DiskAddress) Serialize(to []byte) error {
	if len(to) != DiskAddressSize {
		return fmt.Errorf("DiskAddress.Serialize: buffer is %d bytes, want %d", len(to), DiskAddressSize)
	}
	binary.LittleEndian.PutUint64(to, uint64(*a))
	return nil
}

func (a *DiskAddress) Deserialize(offset uint64, mem LinearStore) error {
	raw, err := ReadView(mem, offset, DiskAddressSize)
	if err != nil {
		return err
	}
	addr, err := DiskAddressFromBytes(raw)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
