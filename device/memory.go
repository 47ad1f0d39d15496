package device

import (
	"fmt"
	"sync"
	"unsafe"
)

// Float is the set of element types the numeric kernels operate on.
type Float interface {
	float32 | float64
}

// MemcpyKind specifies the direction of memory transfer. All memory is
// host-accessible, so the kinds only document intent.
type MemcpyKind int

const (
	MemcpyHostToHost     MemcpyKind = iota // Host to host transfer
	MemcpyHostToDevice                     // Host to device transfer
	MemcpyDeviceToHost                     // Device to host transfer
	MemcpyDeviceToDevice                   // Device to device transfer
)

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead and memory fragmentation.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[uintptr]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
}

type allocation struct {
	words []uint64 // keeps the backing array reachable and 8-byte aligned
	size  int
	used  bool
}

// DevicePtr points into device memory. Use View, Float32 or Float64 to
// access the data, and Offset for pointer arithmetic.
type DevicePtr struct {
	ptr    unsafe.Pointer
	size   int
	offset int
}

// NewMemoryPool creates an empty pool.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		allocated: make(map[uintptr]*allocation),
	}
}

// Malloc allocates size bytes of device memory.
//
// Example:
//
//	ptr, err := ctx.Malloc(1024 * 4) // Allocate 1024 float32s
//	if err != nil {
//		return err
//	}
//	defer ctx.Free(ptr)
func (ctx *Context) Malloc(size int) (DevicePtr, error) {
	return ctx.memory.Allocate(size)
}

// Free releases device memory allocated by Malloc.
// The memory may be retained in the pool for future allocations.
func (ctx *Context) Free(ptr DevicePtr) error {
	return ctx.memory.Free(ptr)
}

// MemoryStats returns the bytes currently allocated and the peak.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

// Memcpy copies size bytes between device pointers or Go slices.
func (ctx *Context) Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	d, err := asDevicePtr("Memcpy", dst)
	if err != nil {
		return err
	}
	s, err := asDevicePtr("Memcpy", src)
	if err != nil {
		return err
	}
	if size < 0 || size > d.size || size > s.size {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("copy of %d bytes exceeds buffer (dst %d, src %d)", size, d.size, s.size))
	}
	copy(d.Byte()[:size], s.Byte()[:size])
	return nil
}

func asDevicePtr(op string, v interface{}) (DevicePtr, error) {
	switch x := v.(type) {
	case DevicePtr:
		return x, nil
	case []byte:
		return HostPtr(x), nil
	case []float32:
		return HostPtr(x), nil
	case []float64:
		return HostPtr(x), nil
	default:
		return DevicePtr{}, NewInvalidArgError(op, fmt.Sprintf("unsupported buffer type: %T", v))
	}
}

// MemsetAsync enqueues a fill of the first size bytes of ptr with value.
func MemsetAsync(q Queue, ptr DevicePtr, value byte, size int) error {
	if size < 0 || size > ptr.size {
		return NewInvalidArgError("MemsetAsync", fmt.Sprintf("fill of %d bytes exceeds buffer of %d", size, ptr.size))
	}
	q.Enqueue(func() error {
		b := ptr.Byte()[:size]
		if value == 0 {
			clear(b)
			return nil
		}
		for i := range b {
			b[i] = value
		}
		return nil
	})
	return nil
}

// MemcpyAsync enqueues a copy of size bytes from src to dst.
func MemcpyAsync(q Queue, dst, src DevicePtr, size int) error {
	if size < 0 || size > dst.size || size > src.size {
		return NewInvalidArgError("MemcpyAsync", fmt.Sprintf("copy of %d bytes exceeds buffer (dst %d, src %d)", size, dst.size, src.size))
	}
	q.Enqueue(func() error {
		copy(dst.Byte()[:size], src.Byte()[:size])
		return nil
	})
	return nil
}

// MemoryPool methods

// Allocate allocates memory from the pool
func (mp *MemoryPool) Allocate(size int) (DevicePtr, error) {
	if size <= 0 {
		return DevicePtr{}, ErrInvalidSize
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	alignedSize := (size + MemoryAlignment - 1) &^ (MemoryAlignment - 1)

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if alloc.size >= alignedSize {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			mp.track(int64(alloc.size))
			return wrapWords(alloc.words, size), nil
		}
	}

	alloc := &allocation{
		words: make([]uint64, alignedSize/8),
		size:  alignedSize,
		used:  true,
	}
	mp.allocated[uintptr(unsafe.Pointer(&alloc.words[0]))] = alloc
	mp.track(int64(alignedSize))

	return wrapWords(alloc.words, size), nil
}

func (mp *MemoryPool) track(n int64) {
	mp.totalAlloc += n
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
}

// Free returns memory to the pool. Freeing the zero DevicePtr is a no-op.
func (mp *MemoryPool) Free(ptr DevicePtr) error {
	if ptr.ptr == nil {
		return nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[uintptr(ptr.ptr)]
	if !ok {
		return NewMemoryError("Free", "pointer not found in allocation pool", nil)
	}
	if !alloc.used {
		return ErrDoubleFree
	}

	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(alloc.size)

	return nil
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// DevicePtr methods

func wrapWords(words []uint64, size int) DevicePtr {
	return DevicePtr{ptr: unsafe.Pointer(&words[0]), size: size}
}

// HostPtr wraps a caller-owned slice as device memory without copying.
// The slice must stay alive while work referencing it is pending.
func HostPtr[T any](s []T) DevicePtr {
	if len(s) == 0 {
		return DevicePtr{}
	}
	var zero T
	return DevicePtr{ptr: unsafe.Pointer(&s[0]), size: len(s) * int(unsafe.Sizeof(zero))}
}

// View returns a typed slice over the memory. Trailing bytes that do not
// fill a whole element are not part of the view.
func View[T Float](d DevicePtr) []T {
	if d.ptr == nil {
		return nil
	}
	var zero T
	n := d.size / int(unsafe.Sizeof(zero))
	return unsafe.Slice((*T)(d.ptr), n)
}

// Float32 returns a float32 slice view of the device memory.
func (d DevicePtr) Float32() []float32 {
	return View[float32](d)
}

// Float64 returns a float64 slice view of the device memory.
func (d DevicePtr) Float64() []float64 {
	return View[float64](d)
}

// Byte returns a byte slice view of the device memory.
func (d DevicePtr) Byte() []byte {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(d.ptr), d.size)
}

// Offset returns a new DevicePtr offset by the given number of bytes.
// The returned DevicePtr shares the same underlying memory.
func (d DevicePtr) Offset(bytes int) DevicePtr {
	return DevicePtr{
		ptr:    unsafe.Add(d.ptr, bytes),
		size:   d.size - bytes,
		offset: d.offset + bytes,
	}
}

// Size returns the size in bytes of the memory region
func (d DevicePtr) Size() int {
	return d.size
}

// IsNil reports whether the pointer refers to no memory.
func (d DevicePtr) IsNil() bool {
	return d.ptr == nil
}
