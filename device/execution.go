package device

import (
	"fmt"
	"runtime"
	"sync"
)

// ThreadID identifies a thread's position within the execution hierarchy.
// It provides the same indexing semantics as CUDA's built-in variables:
// blockIdx, threadIdx, blockDim, and gridDim.
type ThreadID struct {
	BlockIdx  Dim3 // Block index within the grid
	ThreadIdx Dim3 // Thread index within the block
	BlockDim  Dim3 // Dimensions of the block
	GridDim   Dim3 // Dimensions of the grid

	block *blockState
}

// blockState is shared by all threads of one executing block.
type blockState struct {
	shared  DevicePtr
	barrier *barrier
}

// Kernel represents a compute kernel that can be executed in parallel.
// Implementations must be safe for concurrent use.
type Kernel interface {
	Execute(tid ThreadID)
}

// KernelFunc is a function that can be launched as a kernel.
type KernelFunc func(tid ThreadID)

// Execute implements Kernel.
func (fn KernelFunc) Execute(tid ThreadID) {
	fn(tid)
}

// LaunchConfig carries the launch geometry of a kernel. Zero Y or Z
// components are treated as one.
type LaunchConfig struct {
	Grid      Dim3
	Block     Dim3
	SharedMem int // Bytes of block-shared memory
}

// Global returns the global thread index along X
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalY returns the global Y index
func (tid ThreadID) GlobalY() int {
	return tid.BlockIdx.Y*tid.BlockDim.Y + tid.ThreadIdx.Y
}

// Linear returns the thread's linear index within its block.
func (tid ThreadID) Linear() int {
	return tid.ThreadIdx.X + tid.BlockDim.X*(tid.ThreadIdx.Y+tid.BlockDim.Y*tid.ThreadIdx.Z)
}

// Shared returns the block's shared memory. It is zeroed when the block
// starts and lives until the block finishes.
func (tid ThreadID) Shared() DevicePtr {
	if tid.block == nil {
		return DevicePtr{}
	}
	return tid.block.shared
}

// SyncThreads blocks until every live thread of the block has reached the
// barrier. Threads that already returned do not participate. It may only be
// called from kernels started with LaunchCooperative.
func (tid ThreadID) SyncThreads() {
	if tid.block == nil || tid.block.barrier == nil {
		panic(ErrSyncOutsideCooperative)
	}
	if !tid.block.barrier.wait() {
		// A sibling thread faulted; the block is abandoned.
		runtime.Goexit()
	}
}

// Launch enqueues kernel on q. The threads of a block run one after another
// on a single goroutine, so kernels must not use SyncThreads.
// Geometry errors are returned immediately and nothing is enqueued; faults
// raised while the kernel runs are reported by q.Synchronize.
func Launch(q Queue, kernel KernelFunc, cfg LaunchConfig) error {
	cfg, err := cfg.validate("Launch")
	if err != nil {
		return err
	}
	q.Enqueue(func() error {
		return runGrid(kernel, cfg, workersFor(q), runBlockSequential)
	})
	return nil
}

// LaunchCooperative enqueues kernel on q with every thread of a block running
// on its own goroutine, so threads may meet at SyncThreads and combine
// values through Shared memory.
func LaunchCooperative(q Queue, kernel KernelFunc, cfg LaunchConfig) error {
	cfg, err := cfg.validate("LaunchCooperative")
	if err != nil {
		return err
	}
	q.Enqueue(func() error {
		return runGrid(kernel, cfg, workersFor(q), runBlockCooperative)
	})
	return nil
}

// validate normalizes cfg and rejects geometry the device cannot run.
func (cfg LaunchConfig) validate(op string) (LaunchConfig, error) {
	for _, d := range []*Dim3{&cfg.Grid, &cfg.Block} {
		if d.Y == 0 {
			d.Y = 1
		}
		if d.Z == 0 {
			d.Z = 1
		}
	}
	switch {
	case cfg.Grid.X < 1 || cfg.Grid.Y < 1 || cfg.Grid.Z < 1:
		return cfg, NewLaunchError(op, fmt.Sprintf("invalid grid dimensions %v", cfg.Grid))
	case cfg.Block.X < 1 || cfg.Block.Y < 1 || cfg.Block.Z < 1:
		return cfg, NewLaunchError(op, fmt.Sprintf("invalid block dimensions %v", cfg.Block))
	case cfg.Block.Size() > MaxThreadsPerBlock:
		return cfg, NewLaunchError(op, fmt.Sprintf("block of %d threads exceeds %d", cfg.Block.Size(), MaxThreadsPerBlock))
	case cfg.Grid.X > MaxGridDimX || cfg.Grid.Y > MaxGridDimYZ || cfg.Grid.Z > MaxGridDimYZ:
		return cfg, NewLaunchError(op, fmt.Sprintf("grid %v exceeds device limits", cfg.Grid))
	case cfg.SharedMem < 0 || cfg.SharedMem > MaxSharedMemPerBlock:
		return cfg, NewLaunchError(op, fmt.Sprintf("shared memory of %d bytes exceeds %d", cfg.SharedMem, MaxSharedMemPerBlock))
	}
	return cfg, nil
}

func workersFor(q Queue) int {
	if wc, ok := q.(workerCounter); ok && wc.Workers() > 0 {
		return wc.Workers()
	}
	return runtime.NumCPU()
}

type blockRunner func(kernel KernelFunc, cfg LaunchConfig, blockIdx Dim3, f *fault)

// runGrid spreads the blocks of the grid over numWorkers goroutines. Each
// worker takes a contiguous range of blocks to keep cache reuse high.
func runGrid(kernel KernelFunc, cfg LaunchConfig, numWorkers int, run blockRunner) error {
	gridSize := cfg.Grid.Size()
	if gridSize < numWorkers {
		numWorkers = gridSize
	}
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

	var f fault
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		start := w * blocksPerWorker
		end := min(start+blocksPerWorker, gridSize)
		go func() {
			defer wg.Done()
			for b := start; b < end && !f.failed(); b++ {
				run(kernel, cfg, linearTo3D(b, cfg.Grid), &f)
			}
		}()
	}
	wg.Wait()
	return f.err()
}

func runBlockSequential(kernel KernelFunc, cfg LaunchConfig, blockIdx Dim3, f *fault) {
	state := &blockState{shared: sharedMemory(cfg.SharedMem)}
	tid := ThreadID{BlockIdx: blockIdx, BlockDim: cfg.Block, GridDim: cfg.Grid, block: state}
	defer func() {
		if r := recover(); r != nil {
			f.record(r, tid)
		}
	}()
	blockSize := cfg.Block.Size()
	for t := 0; t < blockSize; t++ {
		tid.ThreadIdx = linearTo3D(t, cfg.Block)
		kernel(tid)
	}
}

func runBlockCooperative(kernel KernelFunc, cfg LaunchConfig, blockIdx Dim3, f *fault) {
	blockSize := cfg.Block.Size()
	state := &blockState{
		shared:  sharedMemory(cfg.SharedMem),
		barrier: newBarrier(blockSize),
	}

	var wg sync.WaitGroup
	wg.Add(blockSize)
	for t := 0; t < blockSize; t++ {
		tid := ThreadID{
			BlockIdx:  blockIdx,
			ThreadIdx: linearTo3D(t, cfg.Block),
			BlockDim:  cfg.Block,
			GridDim:   cfg.Grid,
			block:     state,
		}
		go func() {
			defer wg.Done()
			defer state.barrier.leave()
			defer func() {
				if r := recover(); r != nil {
					f.record(r, tid)
					state.barrier.abort()
				}
			}()
			kernel(tid)
		}()
	}
	wg.Wait()
}

func sharedMemory(size int) DevicePtr {
	if size == 0 {
		return DevicePtr{}
	}
	return wrapWords(make([]uint64, (size+7)/8), size)
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}

// fault keeps the first panic raised by any thread of a launch.
type fault struct {
	mu    sync.Mutex
	first error
}

func (f *fault) record(r interface{}, tid ThreadID) {
	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("%v", r)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.first == nil {
		f.first = NewExecutionError("kernel",
			fmt.Sprintf("fault in block %v thread %v", tid.BlockIdx, tid.ThreadIdx), cause)
	}
}

func (f *fault) failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.first != nil
}

func (f *fault) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.first
}

// barrier is a reusable block-wide barrier. Threads that leave the block
// shrink the party so the remaining threads are not held forever.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	arrived int
	gen     uint64
	broken  bool
}

func newBarrier(parties int) *barrier {
	b := &barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// wait reports false when the barrier was aborted.
func (b *barrier) wait() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken {
		return false
	}
	gen := b.gen
	b.arrived++
	if b.arrived == b.parties {
		b.release()
		return true
	}
	for gen == b.gen {
		if b.broken {
			return false
		}
		b.cond.Wait()
	}
	return true
}

func (b *barrier) leave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parties--
	if b.arrived > 0 && b.arrived == b.parties {
		b.release()
	}
}

func (b *barrier) abort() {
	b.mu.Lock()
	b.broken = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// release must be called with b.mu held.
func (b *barrier) release() {
	b.arrived = 0
	b.gen++
	b.cond.Broadcast()
}
