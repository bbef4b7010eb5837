// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorable_RoundTrip(t *testing.T) {
	s := newTestStore(512)
	for i, val := range []string{"", "a", "hello world", string(make([]byte, maxTestItemLen))} {
		addr := DiskAddress(1 + i*(maxTestItemLen+1))
		writeItem(t, s, addr, val)

		obj, err := AddrToObj[testItem](s, addr, maxTestItemLen+1)
		require.NoError(t, err)
		assert.Equal(t, val, string(obj.Item().val))
		assert.Equal(t, addr, obj.Addr())
		assert.False(t, obj.IsDirty())
	}
}

func TestAddrToObj_Errors(t *testing.T) {
	s := newTestStore(64)

	_, err := AddrToObj[testItem](s, 0, 16)
	assert.True(t, errors.Is(err, ErrInvalidAddress))

	// out of bounds
	_, err = AddrToObj[testItem](s, 64, 16)
	assert.True(t, errors.Is(err, ErrInvalidCacheView))

	// malformed length prefix
	require.NoError(t, s.Write(8, []byte{maxTestItemLen + 1}))
	_, err = AddrToObj[testItem](s, 8, 16)
	assert.True(t, errors.Is(err, ErrDecode))

	_, err = ItemToObj(s, 0, 16, &testItem{})
	assert.True(t, errors.Is(err, ErrInvalidAddress))
}

func TestObj_ModifyThenFlush(t *testing.T) {
	s := newTestStore(64)
	writeItem(t, s, 4, "abc")

	obj, err := AddrToObj[testItem](s, 4, 8)
	require.NoError(t, err)

	err = obj.Modify(func(it *testItem) {
		it.val = []byte("xyz!")
	})
	require.NoError(t, err)
	assert.True(t, obj.IsDirty())
	// nothing reaches the store until a flush
	assert.Equal(t, "abc", readItem(t, s, 4))

	require.NoError(t, obj.Close())
	assert.False(t, obj.IsDirty())
	assert.Equal(t, "xyz!", readItem(t, s, 4))

	want, err := ToDehydrated(&testItem{val: []byte("xyz!")})
	require.NoError(t, err)
	assert.Equal(t, want, s.bytesAt(4, uint64(len(want))))

	// flushing a clean object is a no-op
	writes := s.writeCount()
	require.NoError(t, obj.FlushDirty())
	assert.Equal(t, writes, s.writeCount())
}

func TestObj_ModifyOversize(t *testing.T) {
	s := newTestStore(64)
	writeItem(t, s, 4, "abc")

	obj, err := AddrToObj[testItem](s, 4, 4)
	require.NoError(t, err)

	// a pending change that fits
	require.NoError(t, obj.Modify(func(it *testItem) {
		it.val = []byte("xyz")
	}))
	require.True(t, obj.IsDirty())

	err = obj.Modify(func(it *testItem) {
		it.val = []byte("toolong")
	})
	assert.True(t, errors.Is(err, ErrObjWriteSize))
	assert.False(t, obj.IsDirty())
	// the mutation isn't rolled back, but neither it nor the pending
	// change before it reaches the store
	assert.Equal(t, "toolong", string(obj.Item().val))
	require.NoError(t, obj.Close())
	assert.Equal(t, "abc", readItem(t, s, 4))
}

func TestObj_ModifyImmutable(t *testing.T) {
	s := newTestStore(64)
	writeItem(t, s, 4, "abc")
	s.readOnly = true

	obj, err := AddrToObj[testItem](s, 4, 16)
	require.NoError(t, err)
	err = obj.Modify(func(it *testItem) {
		it.val = []byte("d")
	})
	assert.True(t, errors.Is(err, ErrImmutableWrite))
	assert.False(t, obj.IsDirty())
}

func TestObj_FlushFailureStaysDirty(t *testing.T) {
	s := newTestStore(64)
	writeItem(t, s, 4, "abc")

	obj, err := AddrToObj[testItem](s, 4, 16)
	require.NoError(t, err)
	require.NoError(t, obj.Modify(func(it *testItem) {
		it.val = []byte("def")
	}))

	s.setFailWrites(true)
	err = obj.FlushDirty()
	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, obj.IsDirty())

	s.setFailWrites(false)
	require.NoError(t, obj.FlushDirty())
	assert.Equal(t, "def", readItem(t, s, 4))
}

func TestObj_IntoInner(t *testing.T) {
	s := newTestStore(64)
	writeItem(t, s, 4, "abc")

	obj, err := AddrToObj[testItem](s, 4, 16)
	require.NoError(t, err)
	require.NoError(t, obj.Modify(func(it *testItem) {
		it.val = []byte("q")
	}))
	item, err := obj.IntoInner()
	require.NoError(t, err)
	assert.Equal(t, "q", string(item.val))
	assert.Equal(t, "q", readItem(t, s, 4))
}

func TestItemToObj(t *testing.T) {
	s := newTestStore(64)

	obj, err := ItemToObj(s, 10, 16, &testItem{val: []byte("fresh")})
	require.NoError(t, err)
	// hydrated items aren't dirty until modified
	assert.False(t, obj.IsDirty())
	require.NoError(t, obj.Modify(func(*testItem) {}))
	require.NoError(t, obj.Close())
	assert.Equal(t, "fresh", readItem(t, s, 10))
}

func TestSlice(t *testing.T) {
	s := newTestStore(64)
	writeItem(t, s, 8, "01234567")

	parent, err := AddrToObj[testItem](s, 8, 16)
	require.NoError(t, err)

	// the 8 value bytes of the parent, viewed as a DiskAddress
	child, err := Slice(parent, 1, DiskAddressSize, new(DiskAddress))
	require.NoError(t, err)
	assert.Equal(t, DiskAddress(9), child.Addr())

	addr := DiskAddress(0x1122334455667788)
	require.NoError(t, child.Modify(func(a *DiskAddress) {
		*a = addr
	}))
	require.NoError(t, child.Close())
	var decoded DiskAddress
	require.NoError(t, decoded.Deserialize(9, s))
	assert.Equal(t, addr, decoded)

	// dirty parents can't be sliced
	require.NoError(t, parent.Modify(func(it *testItem) {
		it.val = []byte("x")
	}))
	_, err = Slice(parent, 1, DiskAddressSize, new(DiskAddress))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidObj))
	var invalid *InvalidObjError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "dirty write", invalid.Reason)
	assert.Equal(t, DiskAddress(9), invalid.Addr)
}
