// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package badgerstore provides a LinearStore persisted in a badger
// database.  The linear space is split into fixed-size pages, one key per
// page; pages that were never written read as zeros.  A Write spanning
// several pages is applied in a single badger transaction.
package badgerstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/bpowers/shale"
)

const DefaultPageSize = 4096

var (
	sizeKey     = []byte("meta:size")
	pageSizeKey = []byte("meta:pagesize")
	idKey       = []byte("meta:id")
)

func pageKey(page uint64) []byte {
	key := make([]byte, 5+8)
	copy(key, "page:")
	binary.BigEndian.PutUint64(key[5:], page)
	return key
}

// Option configures Open.
type Option func(*options)

type options struct {
	pageSize uint64
	id       shale.StoreID
	readOnly bool
	inMemory bool
	logger   *slog.Logger
}

// WithPageSize sets the page size of a new database.  Existing databases
// keep the page size they were created with.
func WithPageSize(size uint64) Option {
	return func(opts *options) {
		opts.pageSize = size
	}
}

// WithStoreID sets the id recorded in a new database.  Without it, new
// databases get shale.InvalidStoreID.
func WithStoreID(id shale.StoreID) Option {
	return func(opts *options) {
		opts.id = id
	}
}

// ReadOnly opens the database read-only; every Write fails with
// shale.ErrImmutableWrite.
func ReadOnly() Option {
	return func(opts *options) {
		opts.readOnly = true
	}
}

// InMemory keeps the database entirely in memory; the path passed to Open
// is ignored.
func InMemory() Option {
	return func(opts *options) {
		opts.inMemory = true
	}
}

// WithLogger sets a logger, which badger's own logging is routed through
// too.  If not provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

type Store struct {
	db *badger.DB
	// serializes writes and guards size
	mu        sync.RWMutex
	size      uint64
	pageSize  uint64
	id        shale.StoreID
	writeable bool
	logger    *slog.Logger
}

func Open(path string, opts ...Option) (*Store, error) {
	options := options{
		pageSize: DefaultPageSize,
		id:       shale.InvalidStoreID,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.pageSize == 0 {
		return nil, errors.New("page size must be positive")
	}

	bopts := badger.DefaultOptions(path)
	if options.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.WithLogger(badgerLogger{options.logger}).WithReadOnly(options.readOnly)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &Store{
		db:        db,
		pageSize:  options.pageSize,
		id:        options.id,
		writeable: !options.readOnly,
		logger:    options.logger,
	}
	if err := s.loadMetadata(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	s.logger.Debug("opened store", "path", path, "size", s.size, "pageSize", s.pageSize, "id", s.id)
	return s, nil
}

func getUint64(txn *badger.Txn, key []byte) (uint64, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, false, err
	}
	if len(val) != 8 {
		return 0, false, fmt.Errorf("%w: %s is %d bytes", shale.ErrDecode, key, len(val))
	}
	return binary.BigEndian.Uint64(val), true, nil
}

func putUint64(txn *badger.Txn, key []byte, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return txn.Set(key, buf)
}

func (s *Store) loadMetadata() error {
	var fresh bool
	err := s.db.View(func(txn *badger.Txn) error {
		size, ok, err := getUint64(txn, sizeKey)
		if err != nil {
			return err
		}
		fresh = !ok
		s.size = size

		if pageSize, ok, err := getUint64(txn, pageSizeKey); err != nil {
			return err
		} else if ok {
			s.pageSize = pageSize
		}
		if id, ok, err := getUint64(txn, idKey); err != nil {
			return err
		} else if ok {
			s.id = shale.StoreID(id)
		}
		return nil
	})
	if err != nil || !fresh || !s.writeable {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := putUint64(txn, sizeKey, 0); err != nil {
			return err
		}
		if err := putUint64(txn, pageSizeKey, s.pageSize); err != nil {
			return err
		}
		return putUint64(txn, idKey, uint64(s.id))
	})
}

func (s *Store) readPage(txn *badger.Txn, page uint64) ([]byte, error) {
	item, err := txn.Get(pageKey(page))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return make([]byte, s.pageSize), nil
	} else if err != nil {
		return nil, err
	}
	buf, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	if uint64(len(buf)) != s.pageSize {
		return nil, fmt.Errorf("%w: page %d is %d bytes, want %d", shale.ErrDecode, page, len(buf), s.pageSize)
	}
	return buf, nil
}

// forEachPage calls f for every page overlapping [offset, end), with the
// page-relative and range-relative bounds of the overlap.
func (s *Store) forEachPage(offset, end uint64, f func(page, pageOff, pageEnd, rangeOff uint64) error) error {
	for page := offset / s.pageSize; page*s.pageSize < end; page++ {
		start := page * s.pageSize
		from := max(offset, start)
		to := min(end, start+s.pageSize)
		if err := f(page, from-start, to-start, from-offset); err != nil {
			return err
		}
	}
	return nil
}

// GetView reads [offset, offset+length), which must lie below the highest
// byte ever written.
func (s *Store) GetView(offset, length uint64) (shale.LinearStoreView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	end := offset + length
	if end < offset || end > s.size {
		return nil, false
	}

	view := make([]byte, length)
	err := s.db.View(func(txn *badger.Txn) error {
		return s.forEachPage(offset, end, func(page, pageOff, pageEnd, rangeOff uint64) error {
			buf, err := s.readPage(txn, page)
			if err != nil {
				return err
			}
			copy(view[rangeOff:], buf[pageOff:pageEnd])
			return nil
		})
	})
	if err != nil {
		s.logger.Error("read failed", "offset", offset, "length", length, "err", err)
		return nil, false
	}
	return shale.ByteView(view), true
}

// GetShared returns s: badger handles concurrent readers itself.
func (s *Store) GetShared() shale.LinearStore {
	return s
}

func (s *Store) Write(offset uint64, change []byte) error {
	if !s.writeable {
		return fmt.Errorf("badgerstore %d: %w", s.id, shale.ErrImmutableWrite)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	end := offset + uint64(len(change))
	if end < offset {
		return fmt.Errorf("%w: write at %d overflows", shale.ErrIO, offset)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		err := s.forEachPage(offset, end, func(page, pageOff, pageEnd, rangeOff uint64) error {
			buf, err := s.readPage(txn, page)
			if err != nil {
				return err
			}
			copy(buf[pageOff:pageEnd], change[rangeOff:])
			return txn.Set(pageKey(page), buf)
		})
		if err != nil {
			return err
		}
		if end > s.size {
			return putUint64(txn, sizeKey, end)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: badger: %w", shale.ErrIO, err)
	}
	if end > s.size {
		s.size = end
	}
	return nil
}

func (s *Store) ID() shale.StoreID {
	return s.id
}

func (s *Store) IsWriteable() bool {
	return s.writeable
}

// Len returns one past the highest byte ever written.
func (s *Store) Len() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *Store) PageSize() uint64 {
	return s.pageSize
}

// Sync forces badger's value log to disk.
func (s *Store) Sync() error {
	if !s.writeable {
		return nil
	}
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("%w: badger sync: %w", shale.ErrIO, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.logger.Debug("closing store", "id", s.id)
	return s.db.Close()
}

var _ shale.LinearStore = &Store{}
