// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package record

import (
	"fmt"

	"github.com/bpowers/shale"
	"github.com/bpowers/shale/internal/ondisk"
)

// Field offsets within a serialized SpaceHeader, for use with shale.Slice.
const (
	MetaSpaceTailOffset = 0
	DataSpaceTailOffset = MetaSpaceTailOffset + shale.DiskAddressSize
	BaseAddrOffset      = DataSpaceTailOffset + shale.DiskAddressSize
	AllocAddrOffset     = BaseAddrOffset + shale.DiskAddressSize

	SpaceHeaderSize = AllocAddrOffset + shale.DiskAddressSize
)

// SpaceHeader records the extent of the meta and data spaces of a store
// along with the allocator's state.
type SpaceHeader struct {
	MetaSpaceTail shale.DiskAddress
	DataSpaceTail shale.DiskAddress
	BaseAddr      shale.DiskAddress
	AllocAddr     shale.DiskAddress
}

func (h *SpaceHeader) fields() [4]*shale.DiskAddress {
	return [4]*shale.DiskAddress{&h.MetaSpaceTail, &h.DataSpaceTail, &h.BaseAddr, &h.AllocAddr}
}

func (h *SpaceHeader) SerializedLen() uint64 {
	return SpaceHeaderSize
}

func (h *SpaceHeader) Serialize(to []byte) error {
	if len(to) != SpaceHeaderSize {
		return fmt.Errorf("serialize space header: buffer is %d bytes, want %d", len(to), SpaceHeaderSize)
	}
	for i, f := range h.fields() {
		b := f.Bytes()
		copy(to[i*shale.DiskAddressSize:], b[:])
	}
	return nil
}

func (h *SpaceHeader) Deserialize(offset uint64, mem shale.LinearStore) error {
	for i, f := range h.fields() {
		v, err := ondisk.Uint64At(mem, offset+uint64(i)*shale.DiskAddressSize)
		if err != nil {
			return err
		}
		*f = shale.DiskAddress(v)
	}
	return nil
}

func (h *SpaceHeader) String() string {
	return fmt.Sprintf("SpaceHeader{meta: %s, data: %s, base: %s, alloc: %s}",
		h.MetaSpaceTail, h.DataSpaceTail, h.BaseAddr, h.AllocAddr)
}

// SliceField returns an Obj over the single DiskAddress at fieldOffset
// within hdr, so that one field can be updated without rewriting the whole
// header.  The child starts from hdr's in-memory value; writes through it
// are not reflected in hdr.Item().
func SliceField(hdr *shale.Obj[*SpaceHeader], fieldOffset uint64) (*shale.Obj[*shale.DiskAddress], error) {
	var addr shale.DiskAddress
	switch fieldOffset {
	case MetaSpaceTailOffset:
		addr = hdr.Item().MetaSpaceTail
	case DataSpaceTailOffset:
		addr = hdr.Item().DataSpaceTail
	case BaseAddrOffset:
		addr = hdr.Item().BaseAddr
	case AllocAddrOffset:
		addr = hdr.Item().AllocAddr
	default:
		return nil, fmt.Errorf("space header has no field at offset %d", fieldOffset)
	}
	return shale.Slice(hdr, fieldOffset, shale.DiskAddressSize, &addr)
}

var _ shale.Storable = &SpaceHeader{}
