// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package record contains Storable implementations shared by users of
// shale: checksummed byte blobs and the header that describes how a store
// is carved into spaces.
package record

import (
	"encoding/binary"
	"fmt"

	"github.com/dgryski/go-farm"

	"github.com/bpowers/shale"
	"github.com/bpowers/shale/internal/ondisk"
)

const (
	// BlobHeaderSize is the checksum followed by the data length.
	BlobHeaderSize = 8
	// MaxBlobLen bounds the length a decoded header may claim.
	MaxBlobLen = 1 << 24

	blobChecksumOff = 0
	blobLenOff      = 4
)

// Blob is a variable length byte string, stored as
//
//	[checksum uint32][len uint32][data]
//
// where checksum is the low 32 bits of the farm hash of data.
type Blob struct {
	Data []byte
}

func NewBlob(data []byte) *Blob {
	return &Blob{Data: data}
}

// BlobLenLimit returns the space a Blob of n data bytes occupies.
func BlobLenLimit(n int) uint64 {
	return BlobHeaderSize + uint64(n)
}

func (b *Blob) SerializedLen() uint64 {
	return BlobLenLimit(len(b.Data))
}

func (b *Blob) Serialize(to []byte) error {
	if len(b.Data) > MaxBlobLen {
		return fmt.Errorf("blob of %d bytes too long (max %d)", len(b.Data), MaxBlobLen)
	}
	if uint64(len(to)) != b.SerializedLen() {
		return fmt.Errorf("serialize blob: buffer is %d bytes, want %d", len(to), b.SerializedLen())
	}
	binary.LittleEndian.PutUint32(to[blobChecksumOff:], uint32(farm.Hash64(b.Data)))
	binary.LittleEndian.PutUint32(to[blobLenOff:], uint32(len(b.Data)))
	copy(to[BlobHeaderSize:], b.Data)
	return nil
}

func (b *Blob) Deserialize(offset uint64, mem shale.LinearStore) error {
	expectedChecksum, err := ondisk.Uint32At(mem, offset+blobChecksumOff)
	if err != nil {
		return err
	}
	n, err := ondisk.Uint32At(mem, offset+blobLenOff)
	if err != nil {
		return err
	}
	if n > MaxBlobLen {
		return fmt.Errorf("%w: blob at %d claims %d bytes (max %d)", shale.ErrDecode, offset, n, MaxBlobLen)
	}
	data, err := shale.ReadView(mem, offset+BlobHeaderSize, uint64(n))
	if err != nil {
		return err
	}
	if checksum := uint32(farm.Hash64(data)); checksum != expectedChecksum {
		return fmt.Errorf("%w: blob at %d checksum failed (%d != %d)", shale.ErrDecode, offset, expectedChecksum, checksum)
	}
	b.Data = data
	return nil
}

func (b *Blob) String() string {
	return fmt.Sprintf("Blob{%q}", b.Data)
}

var _ shale.Storable = &Blob{}
