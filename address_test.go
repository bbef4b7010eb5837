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

func TestDiskAddress(t *testing.T) {
	var null DiskAddress
	assert.True(t, null.IsNull())
	assert.Equal(t, "null", null.String())

	addr := DiskAddress(0x80)
	assert.False(t, addr.IsNull())
	assert.Equal(t, "0x80", addr.String())
	assert.Equal(t, DiskAddress(0x88), addr.Add(8))

	raw := addr.Bytes()
	decoded, err := DiskAddressFromBytes(raw[:])
	require.NoError(t, err)
	assert.Equal(t, addr, decoded)

	_, err = DiskAddressFromBytes(raw[:4])
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestDiskAddress_Storable(t *testing.T) {
	s := newTestStore(64)
	addr := DiskAddress(0xdeadbeef)

	raw, err := ToDehydrated(&addr)
	require.NoError(t, err)
	require.Len(t, raw, DiskAddressSize)
	require.NoError(t, s.Write(16, raw))

	var decoded DiskAddress
	require.NoError(t, decoded.Deserialize(16, s))
	assert.Equal(t, addr, decoded)

	// reading past the end of the store can't even produce a view
	err = decoded.Deserialize(60, s)
	assert.True(t, errors.Is(err, ErrInvalidCacheView))

	assert.Error(t, addr.Serialize(make([]byte, 4)))
}
