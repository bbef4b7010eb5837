// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package mmapstore provides a LinearStore backed by a memory-mapped file.
//
// A store file looks like:
//
//	┌───────────────────┐
//	│ file header       │ 128 bytes
//	├───────────────────┤
//	│ records, placed   │
//	│ by the allocator  │
//	│                   │
//	│                   │
//	└───────────────────┘
//
// The header carries a magic number, the file format version and the store
// id:
//
//	 0    1    2    3    4    5    6    7
//	+----+----+----+----+----+----+----+----+
//	| magic             | format version    |
//	+----+----+----+----+----+----+----+----+
//	| id | reserved...                      |
//	+----+----+----+----+----+----+----+----+
//
// Because the header always occupies the start of the file, offset 0 (the
// null DiskAddress) never names a record.  Reads and writes that touch the
// header are rejected.
//
// Writes land in the shared mapping and are visible to every view
// immediately; Sync forces them to the file.
package mmapstore
