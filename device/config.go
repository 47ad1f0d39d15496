package device

// Thread and block dimensions
const (
	// Default block size for kernels
	DefaultBlockSize = 256

	// Maximum threads per block (CUDA compatibility)
	MaxThreadsPerBlock = 1024

	// Maximum number of blocks along grid X
	MaxGridDimX = 1<<31 - 1

	// Maximum number of blocks along grid Y and Z
	MaxGridDimYZ = 65535

	// Warp width used by kernels that tile columns
	WarpSize = 32
)

// Memory parameters
const (
	// Block-shared memory available to one block, in bytes
	MaxSharedMemPerBlock = 48 * 1024

	// Memory alignment for allocations
	MemoryAlignment = 64
)
