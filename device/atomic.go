package device

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// AtomicAdd adds delta to *addr and returns the previous value. It is safe
// for any number of concurrent callers targeting the same address, in the
// manner of CUDA's atomicAdd. The order in which concurrent additions land
// is unspecified, so floating-point results may differ in the last bits
// between runs.
func AtomicAdd[T Float](addr *T, delta T) T {
	switch p := any(addr).(type) {
	case *float32:
		return T(atomicAddFloat32(p, float32(delta)))
	case *float64:
		return T(atomicAddFloat64(p, float64(delta)))
	}
	panic("unreachable")
}

// AtomicLoad reads *addr atomically.
func AtomicLoad[T Float](addr *T) T {
	switch p := any(addr).(type) {
	case *float32:
		return T(math.Float32frombits(atomic.LoadUint32((*uint32)(unsafe.Pointer(p)))))
	case *float64:
		return T(math.Float64frombits(atomic.LoadUint64((*uint64)(unsafe.Pointer(p)))))
	}
	panic("unreachable")
}

func atomicAddFloat32(addr *float32, delta float32) float32 {
	bits := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(bits)
		prev := math.Float32frombits(old)
		if atomic.CompareAndSwapUint32(bits, old, math.Float32bits(prev+delta)) {
			return prev
		}
	}
}

func atomicAddFloat64(addr *float64, delta float64) float64 {
	bits := (*uint64)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint64(bits)
		prev := math.Float64frombits(old)
		if atomic.CompareAndSwapUint64(bits, old, math.Float64bits(prev+delta)) {
			return prev
		}
	}
}
