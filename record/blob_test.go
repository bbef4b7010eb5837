// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/shale"
	"github.com/bpowers/shale/memstore"
)

func TestBlobRoundTrip(t *testing.T) {
	mem := memstore.New()
	for i, data := range [][]byte{nil, []byte("a"), []byte("hello, world")} {
		off := uint64(16 * (i + 1))
		buf, err := shale.ToDehydrated(NewBlob(data))
		require.NoError(t, err)
		require.Equal(t, BlobLenLimit(len(data)), uint64(len(buf)))
		require.NoError(t, mem.Write(off, buf))

		var b Blob
		require.NoError(t, b.Deserialize(off, mem))
		assert.Equal(t, len(data), len(b.Data))
		assert.Equal(t, string(data), string(b.Data))
	}
}

func TestBlobCorruption(t *testing.T) {
	mem := memstore.New()
	buf, err := shale.ToDehydrated(NewBlob([]byte("payload")))
	require.NoError(t, err)
	require.NoError(t, mem.Write(8, buf))

	// flip a data byte
	require.NoError(t, mem.Write(8+BlobHeaderSize, []byte{'P'}))
	var b Blob
	err = b.Deserialize(8, mem)
	require.True(t, errors.Is(err, shale.ErrDecode), "%v", err)

	// an absurd length
	var header [BlobHeaderSize]byte
	binary.LittleEndian.PutUint32(header[blobLenOff:], MaxBlobLen+1)
	require.NoError(t, mem.Write(8, header[:]))
	err = b.Deserialize(8, mem)
	require.True(t, errors.Is(err, shale.ErrDecode), "%v", err)

	// truncated
	err = b.Deserialize(mem.Len()-4, mem)
	require.True(t, errors.Is(err, shale.ErrInvalidCacheView), "%v", err)
}

func TestBlobCache(t *testing.T) {
	const capacity = 4
	mem := memstore.New()
	cache := shale.NewObjCache[*Blob](capacity)

	var addrs []shale.DiskAddress
	next := shale.DiskAddress(8)
	for i := 0; i < 3*capacity; i++ {
		data := []byte(fmt.Sprintf("value-%02d", i))
		ref, err := cache.PutItem(mem, next, BlobLenLimit(len(data)), NewBlob(data))
		require.NoError(t, err)
		require.True(t, ref.IsDirty())
		require.NoError(t, ref.Release())
		addrs = append(addrs, next)
		next = next.Add(BlobLenLimit(len(data)))
	}
	require.LessOrEqual(t, cache.Len(), capacity)

	ok, err := cache.FlushDirty()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, cache.DirtyLen())

	// everything is on the store now, whether or not it was evicted
	for i, addr := range addrs {
		var b Blob
		require.NoError(t, b.Deserialize(addr.Get(), mem))
		require.Equal(t, fmt.Sprintf("value-%02d", i), string(b.Data))

		ref, err := shale.GetItem(cache, mem, addr, BlobLenLimit(len(b.Data)))
		require.NoError(t, err)
		require.Equal(t, string(b.Data), string(ref.Item().Data))
		require.NoError(t, ref.Release())
	}

	// same-length overwrite through the cache
	ref, err := shale.GetItem(cache, mem, addrs[0], BlobLenLimit(8))
	require.NoError(t, err)
	require.NoError(t, ref.Write(func(b *Blob) { b.Data = []byte("VALUE-00") }))
	// growing past the allocation is rejected
	err = ref.Write(func(b *Blob) { b.Data = []byte("too long to fit") })
	require.True(t, errors.Is(err, shale.ErrObjWriteSize), "%v", err)
	require.NoError(t, ref.Write(func(b *Blob) { b.Data = []byte("VALUE-00") }))
	require.NoError(t, ref.Release())

	ok, err = cache.FlushDirty()
	require.NoError(t, err)
	require.True(t, ok)
	var b Blob
	require.NoError(t, b.Deserialize(addrs[0].Get(), mem))
	require.Equal(t, "VALUE-00", string(b.Data))
}
