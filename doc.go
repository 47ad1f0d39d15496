// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package colmean computes per-column means of dense N×D matrices with
// block-parallel reduction kernels.
//
// A matrix is a contiguous buffer in either row-major layout (the column
// index varies fastest) or column-major layout (the row index varies
// fastest). The two layouts use different reduction topologies:
//
//   - Row-major: blocks own a tile of columns and grid-stride over rows.
//     Per-thread partial sums are folded into a block-shared accumulator
//     and then into the output with atomic adds. The output is zeroed first
//     and the normalization is a separate elementwise pass.
//   - Column-major: one block per column reduces that column with a tree
//     reduction and a single thread writes the mean. No atomics are needed.
//
// All work is enqueued on a caller-supplied device.Queue and runs
// asynchronously; errors raised while kernels run are reported by the
// queue's Synchronize.
//
// Example:
//
//	s := device.DefaultContext().CreateStream()
//	mu := make([]float32, D)
//	err := colmean.Mean[float32](device.HostPtr(mu), device.HostPtr(x), D, N, false, true, s)
//	if err == nil {
//		err = s.Synchronize()
//	}
package colmean
