// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

/*
Package kernel provides the register VM behind compiled functions.

# Overview

A kernel starts life as a Unit, a small textual assembly listing that
source-emitting ops produce during linking. Assemble parses a unit into
a Program, the compact binary form that artifact caches store via
Encode and recover via Load. A VM executes a program against storage
buffers bound to its registers.

Most users never touch this package. It is exported so compiled
functions can expose their program for inspection.

# Basic Usage

	b := kernel.NewUnitBuilder("main")
	x := b.In(graph.T(graph.Float32, 4))
	y := b.In(graph.T(graph.Float32, 4))
	z := b.Out(graph.T(graph.Float32, 4))
	b.Emit("add", z, x, y)

	prog, err := kernel.Assemble(b.Unit())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(prog.Disassemble())
*/
package kernel
