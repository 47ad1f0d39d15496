// Package device provides a CUDA-shaped execution model on the CPU.
//
// Work is expressed as kernels launched over a grid of blocks of threads and
// enqueued on an ordered Queue. A Stream runs its tasks asynchronously on a
// dedicated goroutine; Immediate runs them inline and is meant for tests.
//
// Example usage:
//
//	ctx := device.NewContext()
//	defer ctx.Destroy()
//
//	s := ctx.CreateStream()
//	buf, _ := ctx.Malloc(n * 4) // n float32s
//
//	cfg := device.LaunchConfig{
//		Grid:  device.Dim3{X: (n + 255) / 256},
//		Block: device.Dim3{X: 256},
//	}
//	x := buf.Float32()
//	device.Launch(s, func(tid device.ThreadID) {
//		if i := tid.Global(); i < n {
//			x[i] = float32(i)
//		}
//	}, cfg)
//	err := s.Synchronize()
package device

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// Device describes the compute device. In this package the device is the
// host CPU with its cores and memory.
type Device struct {
	ID         int         // Unique device identifier
	Name       string      // Human-readable device name
	TotalMem   uint64      // Total available memory in bytes
	NumCores   int         // Number of CPU cores
	MaxThreads int         // Maximum concurrent threads
	Features   CPUFeatures // Instruction set extensions
}

// Queue is an ordered execution context. Tasks enqueued on the same queue run
// in issue order; the first task error is kept and reported by Synchronize.
type Queue interface {
	Enqueue(task func() error)
	Synchronize() error
}

// workerCounter is implemented by queues that know how many goroutines a
// launch may fan its blocks out to.
type workerCounter interface {
	Workers() int
}

// Context owns device memory and the streams created from it.
// A Context should be destroyed when no longer needed.
type Context struct {
	device        *Device
	mu            sync.Mutex
	streams       map[int]*Stream
	streamID      int32
	memory        *MemoryPool
	defaultStream *Stream
	workers       int
}

// Option configures a Context.
type Option func(*Context)

// WithWorkers bounds the number of goroutines a single launch uses to run
// blocks. Values below one select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(ctx *Context) {
		ctx.workers = n
	}
}

// Stream is an ordered sequence of operations that execute asynchronously.
// Operations within a stream execute in order, but operations in different
// streams may execute concurrently.
//
// A task error poisons the stream: later tasks are skipped and Synchronize
// keeps returning the first error until Reset is called.
type Stream struct {
	id      int
	workers int
	tasks   chan func() error
	done    chan struct{}
	wg      sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool

	errMu sync.Mutex
	err   error
}

// Global runtime state
var (
	defaultDevice  *Device
	defaultContext *Context
	initOnce       sync.Once
)

func init() {
	initOnce.Do(func() {
		defaultDevice = &Device{
			ID:         0,
			Name:       "CPU",
			TotalMem:   getSystemMemory(),
			NumCores:   runtime.NumCPU(),
			MaxThreads: runtime.NumCPU() * 2, // Hyperthreading
			Features:   DetectCPUFeatures(),
		}
		defaultContext = NewContext()
	})
}

// NewContext creates a context on the CPU device with its own memory pool
// and default stream.
func NewContext(opts ...Option) *Context {
	ctx := &Context{
		device:  defaultDevice,
		streams: make(map[int]*Stream),
		memory:  NewMemoryPool(),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	if ctx.workers < 1 {
		ctx.workers = runtime.NumCPU()
	}
	ctx.defaultStream = ctx.CreateStream()
	return ctx
}

// DefaultContext returns the process-wide context.
func DefaultContext() *Context {
	return defaultContext
}

// Malloc allocates memory from the default context.
func Malloc(size int) (DevicePtr, error) {
	return defaultContext.Malloc(size)
}

// Free releases memory allocated by Malloc.
func Free(ptr DevicePtr) error {
	return defaultContext.Free(ptr)
}

// Synchronize waits for all streams of the default context.
func Synchronize() error {
	return defaultContext.Synchronize()
}

// GetDevice returns the current device information.
func GetDevice() *Device {
	return defaultDevice
}

// GetDeviceProperties returns device properties
func GetDeviceProperties(id int) (*Device, error) {
	if id != 0 {
		return nil, NewInvalidArgError("GetDeviceProperties", fmt.Sprintf("invalid device ID: %d", id))
	}
	return defaultDevice, nil
}

// Context methods

// Device returns the device the context runs on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// Workers returns the number of goroutines launches on this context use.
func (ctx *Context) Workers() int {
	return ctx.workers
}

// DefaultStream returns the stream created together with the context.
func (ctx *Context) DefaultStream() *Stream {
	return ctx.defaultStream
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := &Stream{
		id:      id,
		workers: ctx.workers,
		tasks:   make(chan func() error, 1000),
		done:    make(chan struct{}),
	}

	go stream.worker()

	ctx.mu.Lock()
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// DestroyStream waits for the stream to drain and releases it.
func (ctx *Context) DestroyStream(s *Stream) error {
	ctx.mu.Lock()
	delete(ctx.streams, s.id)
	ctx.mu.Unlock()
	return s.Destroy()
}

// Synchronize waits for all streams and returns the first stream error.
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, s := range ctx.streams {
		streams = append(streams, s)
	}
	ctx.mu.Unlock()

	var first error
	for _, s := range streams {
		if err := s.Synchronize(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Destroy drains and closes every stream of the context.
func (ctx *Context) Destroy() error {
	ctx.mu.Lock()
	streams := ctx.streams
	ctx.streams = make(map[int]*Stream)
	ctx.mu.Unlock()

	var first error
	for _, s := range streams {
		if err := s.Destroy(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stream methods

func (s *Stream) worker() {
	defer close(s.done)
	for task := range s.tasks {
		if s.Err() == nil {
			if err := task(); err != nil {
				s.setErr(err)
			}
		}
		s.wg.Done()
	}
}

// ID returns the stream identifier.
func (s *Stream) ID() int {
	return s.id
}

// Workers returns the launch fan-out inherited from the owning context.
func (s *Stream) Workers() int {
	return s.workers
}

// Enqueue adds a task to the stream. Enqueueing on a destroyed stream
// poisons it with an execution error instead of panicking.
func (s *Stream) Enqueue(task func() error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		s.setErr(NewExecutionError("Enqueue", fmt.Sprintf("stream %d is destroyed", s.id), nil))
		return
	}
	s.wg.Add(1)
	s.tasks <- task
}

// Synchronize waits for all tasks in the stream to complete
func (s *Stream) Synchronize() error {
	s.wg.Wait()
	return s.Err()
}

// Err returns the sticky stream error, if any.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Reset clears the sticky error so the stream accepts work again.
func (s *Stream) Reset() {
	s.errMu.Lock()
	s.err = nil
	s.errMu.Unlock()
}

// Destroy waits for pending tasks and stops the stream worker.
func (s *Stream) Destroy() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return s.Err()
	}
	s.closed = true
	close(s.tasks)
	s.closeMu.Unlock()

	<-s.done
	return s.Err()
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Immediate is a synchronous Queue: every task runs inside Enqueue.
// After a task fails, later tasks are skipped.
type Immediate struct {
	// Blocks of a launch are spread over this many goroutines; zero
	// runs every block on the calling goroutine.
	NumWorkers int

	mu  sync.Mutex
	err error
}

// Enqueue runs the task on the caller's goroutine.
func (q *Immediate) Enqueue(task func() error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return
	}
	q.err = task()
}

// Synchronize returns the first task error.
func (q *Immediate) Synchronize() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Workers implements the launch fan-out hint.
func (q *Immediate) Workers() int {
	if q.NumWorkers < 1 {
		return 1
	}
	return q.NumWorkers
}

// Helper types

// Dim3 represents 3D dimensions for grid and block configurations.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// String formats the dimensions as (x,y,z).
func (d Dim3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", d.X, d.Y, d.Z)
}

// getSystemMemory returns total system memory in bytes
func getSystemMemory() uint64 {
	// TODO: read MemTotal from /proc/meminfo on linux
	return 16 * 1024 * 1024 * 1024
}
