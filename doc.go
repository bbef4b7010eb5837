// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package shale is a persistent object layer over byte-addressable linear
// stores.
//
// Records implement Storable and are addressed by DiskAddress, their
// offset in a LinearStore.  An Obj pairs a decoded record with where it
// lives and writes it back when it is flushed.  An ObjCache keeps a bounded
// LRU of resident Objs, hands out at most one ObjRef per address at a
// time, and tracks which addresses are dirty:
//
//	cache := shale.NewObjCache[*record.Blob](1024)
//	ref, err := shale.GetItem(cache, store, addr, lenLimit)
//	if err != nil {
//		return err
//	}
//	err = ref.Write(func(b *record.Blob) { ... })
//	...
//	err = ref.Release()
//
// Releasing an ObjRef returns its Obj to the LRU; evicted Objs are flushed
// to the store.  FlushDirty writes back every dirty resident Obj, but only
// when nothing is checked out, so it can serve as a commit barrier.
//
// memstore, mmapstore and badgerstore provide LinearStore implementations.
package shale
