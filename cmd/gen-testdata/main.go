// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// gen-testdata writes random key:value blobs into a new mmapstore file
// through an ObjCache, then prints "addr:key:value" for each one.
package main

import (
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/bpowers/shale"
	"github.com/bpowers/shale/mmapstore"
	"github.com/bpowers/shale/record"
)

const (
	prefix    = "pref_"
	suffixLen = 16
	hmacKey   = "d259c7f656caf7f1"
	// hex sha256, ':', prefix, suffix
	maxRecordLen = 64 + 1 + len(prefix) + suffixLen
)

var (
	outPath   = flag.String("out", "testdata.shale", "path of the store file to create")
	nPairs    = flag.Int("n", 100000, "number of records to write")
	cacheSize = flag.Int("cache", 1024, "ObjCache capacity")
	verbose   = flag.Bool("v", false, "log cache activity to stderr")
)

func newRand() *rand.Rand {
	var seedBytes [8]byte
	_, _ = crand.Read(seedBytes[:])
	seed := int64(binary.LittleEndian.Uint64(seedBytes[:]))
	return rand.New(rand.NewSource(seed))
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger); err != nil {
		logger.Error("gen-testdata failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	size := int64(mmapstore.HeaderSize) + record.SpaceHeaderSize + int64(*nPairs)*int64(record.BlobLenLimit(maxRecordLen))
	store, err := mmapstore.Open(*outPath, mmapstore.WithSize(size), mmapstore.WithStoreID(1), mmapstore.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("store.Close", "err", err)
		}
	}()

	hdrAddr := shale.DiskAddress(mmapstore.HeaderSize)
	hdr, err := shale.ItemToObj(store, hdrAddr, record.SpaceHeaderSize, &record.SpaceHeader{})
	if err != nil {
		return err
	}

	cache := shale.NewObjCache[*record.Blob](*cacheSize, shale.WithLogger(logger))
	rng := newRand()
	h := hmac.New(sha256.New, []byte(hmacKey))

	base := hdrAddr.Add(record.SpaceHeaderSize)
	next := base
	for i := 0; i < *nPairs; i++ {
		var buf [suffixLen / 2]byte
		if _, err := rng.Read(buf[:]); err != nil {
			return err
		}
		value := fmt.Sprintf("%s%x", prefix, buf)
		h.Reset()
		h.Write([]byte(value))
		key := hex.EncodeToString(h.Sum(nil))

		data := []byte(key + ":" + value)
		ref, err := cache.PutItem(store, next, record.BlobLenLimit(len(data)), record.NewBlob(data))
		if err != nil {
			return fmt.Errorf("PutItem(%s): %w", next, err)
		}
		addr, err := ref.IntoPtr()
		if err != nil {
			return err
		}
		next = next.Add(record.BlobLenLimit(len(data)))

		fmt.Printf("%d:%s\n", addr.Get(), data)
	}

	if ok, err := cache.FlushDirty(); err != nil {
		return fmt.Errorf("FlushDirty: %w", err)
	} else if !ok {
		return fmt.Errorf("FlushDirty: %d objects still checked out", cache.CheckedOut())
	}

	if err := hdr.Modify(func(sh *record.SpaceHeader) {
		sh.BaseAddr = base
		sh.DataSpaceTail = next
		sh.AllocAddr = next
		sh.MetaSpaceTail = base
	}); err != nil {
		return err
	}
	if err := hdr.Close(); err != nil {
		return err
	}

	stats := cache.Stats()
	logger.Info("wrote records", "count", *nPairs, "bytes", next.Get()-base.Get(),
		"evictions", stats.Evictions, "flushes", stats.Flushes)

	return store.Sync()
}
