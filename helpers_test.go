// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const maxTestItemLen = 64

// testStore is a fixed-size in-memory LinearStore with failure injection.
type testStore struct {
	mu         sync.RWMutex
	buf        []byte
	readOnly   bool
	failWrites bool
	writes     int
}

func newTestStore(size int) *testStore {
	return &testStore{buf: make([]byte, size)}
}

func (s *testStore) GetView(offset, length uint64) (LinearStoreView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset+length > uint64(len(s.buf)) {
		return nil, false
	}
	out := make([]byte, length)
	copy(out, s.buf[offset:offset+length])
	return ByteView(out), true
}

func (s *testStore) GetShared() LinearStore {
	return s
}

func (s *testStore) Write(offset uint64, change []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return ErrImmutableWrite
	}
	if s.failWrites {
		return fmt.Errorf("%w: write failed", ErrIO)
	}
	if offset+uint64(len(change)) > uint64(len(s.buf)) {
		return fmt.Errorf("%w: write out of bounds", ErrIO)
	}
	copy(s.buf[offset:], change)
	s.writes++
	return nil
}

func (s *testStore) ID() StoreID {
	return 1
}

func (s *testStore) IsWriteable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.readOnly
}

func (s *testStore) setFailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

func (s *testStore) writeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *testStore) bytesAt(offset, length uint64) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]byte, length)
	copy(out, s.buf[offset:offset+length])
	return out
}

var _ LinearStore = &testStore{}

// testItem is a length-prefixed byte string: [len][val...]
type testItem struct {
	val []byte
}

func (it *testItem) SerializedLen() uint64 {
	return 1 + uint64(len(it.val))
}

func (it *testItem) Serialize(to []byte) error {
	if uint64(len(to)) != it.SerializedLen() {
		return fmt.Errorf("buffer is %d bytes, want %d", len(to), it.SerializedLen())
	}
	to[0] = byte(len(it.val))
	copy(to[1:], it.val)
	return nil
}

func (it *testItem) Deserialize(offset uint64, mem LinearStore) error {
	hdr, err := ReadView(mem, offset, 1)
	if err != nil {
		return err
	}
	n := uint64(hdr[0])
	if n > maxTestItemLen {
		return fmt.Errorf("%w: item length %d", ErrDecode, n)
	}
	val, err := ReadView(mem, offset+1, n)
	if err != nil {
		return err
	}
	it.val = val
	return nil
}

// writeItem stores val at addr directly, bypassing the object layer.
func writeItem(t *testing.T, s *testStore, addr DiskAddress, val string) {
	t.Helper()
	raw, err := ToDehydrated(&testItem{val: []byte(val)})
	require.NoError(t, err)
	require.NoError(t, s.Write(addr.Get(), raw))
}

// readItem decodes the item at addr straight from the store.
func readItem(t *testing.T, s *testStore, addr DiskAddress) string {
	t.Helper()
	var it testItem
	require.NoError(t, it.Deserialize(addr.Get(), s))
	return string(it.val)
}
