// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

import (
	"io"
	"log/slog"
)

// CacheOption configures an ObjCache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	logger *slog.Logger
}

// WithLogger sets a logger for evictions and flushes.  If not provided, no
// logging output will be produced.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(opts *cacheOptions) {
		opts.logger = logger
	}
}

func defaultCacheOptions() cacheOptions {
	return cacheOptions{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}
