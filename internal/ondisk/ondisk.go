// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package ondisk reads fixed-width little-endian fields out of a
// LinearStore, for use by Storable decoders.
package ondisk

import (
	"encoding/binary"

	"github.com/bpowers/shale"
)

func Uint32At(mem shale.LinearStore, off uint64) (uint32, error) {
	b, err := shale.ReadView(mem, off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func Uint64At(mem shale.LinearStore, off uint64) (uint64, error) {
	b, err := shale.ReadView(mem, off, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
