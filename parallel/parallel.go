// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package parallel configures worker parallelism for compiled kernels.
//
// The zero Config disables parallelism. DefaultConfig sizes the worker
// pool from the CPU count.
package parallel

import (
	"github.com/loom-ml/loom/internal/parallel"
)

// Config controls parallel execution behavior.
type Config = parallel.Config

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config { return parallel.DefaultConfig() }

// Chunks executes f over contiguous index ranges covering [0, n), with
// optional parallelism.
func Chunks(n int, f func(start, end int), cfg Config) { parallel.Chunks(n, f, cfg) }
