// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mmapstore

import (
	"encoding/binary"
	"fmt"

	"github.com/bpowers/shale"
)

const (
	magicStoreHeader  = 0xC0FFEE5A
	fileFormatVersion = 1

	// HeaderSize is the number of bytes reserved at the start of every
	// store file.  It is the smallest valid record offset.
	HeaderSize = 128

	headerIDOff = 8
)

type fileHeader struct {
	magic         uint32
	formatVersion uint32
	storeID       shale.StoreID
}

func newFileHeader(id shale.StoreID) *fileHeader {
	return &fileHeader{
		magic:         magicStoreHeader,
		formatVersion: fileFormatVersion,
		storeID:       id,
	}
}

func (h *fileHeader) MarshalTo(headerBytes []byte) error {
	if len(headerBytes) < HeaderSize {
		return fmt.Errorf("headerBytes too short: %d < %d", len(headerBytes), HeaderSize)
	}
	headerBytes = headerBytes[:HeaderSize]
	clear(headerBytes)

	binary.LittleEndian.PutUint32(headerBytes[:4], h.magic)
	binary.LittleEndian.PutUint32(headerBytes[4:8], h.formatVersion)
	headerBytes[headerIDOff] = uint8(h.storeID)

	return nil
}

func (h *fileHeader) UnmarshalBytes(headerBytes []byte) error {
	if len(headerBytes) < HeaderSize {
		return fmt.Errorf("headerBytes too short: %d < %d", len(headerBytes), HeaderSize)
	}

	headerBytes = headerBytes[:HeaderSize]

	h.magic = binary.LittleEndian.Uint32(headerBytes[:4])
	if h.magic != magicStoreHeader {
		return fmt.Errorf("bad magic number on store file (%x) -- not a shale store or corrupted", h.magic)
	}

	h.formatVersion = binary.LittleEndian.Uint32(headerBytes[4:8])
	if h.formatVersion != fileFormatVersion {
		return fmt.Errorf("this version of the shale library can only read v%d store files; found v%d", fileFormatVersion, h.formatVersion)
	}

	h.storeID = shale.StoreID(headerBytes[headerIDOff])

	return nil
}
