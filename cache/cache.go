// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cache stores compiled kernel artifacts on disk.
//
// Artifacts live under a per-platform subdirectory of the cache root
// and are keyed by a fingerprint of the kernel source. Concurrent
// builds of the same artifact are collapsed within a process and,
// when locking is enabled, serialized across processes with a file
// lock. See the compile package for the usual entry point.
package cache

import (
	"github.com/loom-ml/loom/internal/cache"
)

// Config describes a cache location.
type Config = cache.Config

// Cache is an on-disk artifact store.
type Cache = cache.Cache

// New opens or creates the cache directory for the current platform.
func New(cfg Config) (*Cache, error) { return cache.New(cfg) }

// Fingerprint returns the artifact key for a kernel source.
func Fingerprint(source string) string { return cache.Fingerprint(source) }

// PlatformKey returns the per-platform cache subdirectory name.
func PlatformKey(salt string) string { return cache.PlatformKey(salt) }

// BuildError wraps a failed artifact build.
type BuildError = cache.BuildError

// ErrNoRoot is returned when a cache is configured without a root.
var ErrNoRoot = cache.ErrNoRoot
