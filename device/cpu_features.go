package device

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks available CPU instruction set extensions
type CPUFeatures struct {
	HasSSE4    bool
	HasAVX     bool
	HasAVX2    bool
	HasFMA     bool
	HasAVX512F bool
	HasNEON    bool // ARM Advanced SIMD
	HasSVE     bool
}

// DetectCPUFeatures reads the host's instruction set extensions.
func DetectCPUFeatures() CPUFeatures {
	switch runtime.GOARCH {
	case "amd64", "386":
		return CPUFeatures{
			HasSSE4:    cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
			HasAVX:     cpu.X86.HasAVX,
			HasAVX2:    cpu.X86.HasAVX2,
			HasFMA:     cpu.X86.HasFMA,
			HasAVX512F: cpu.X86.HasAVX512F,
		}
	case "arm64":
		return CPUFeatures{
			HasNEON: cpu.ARM64.HasASIMD,
			HasFMA:  cpu.ARM64.HasASIMD,
			HasSVE:  cpu.ARM64.HasSVE,
		}
	}
	return CPUFeatures{}
}

// VectorWidth returns the widest SIMD register in bytes, or 0 without SIMD.
func (f CPUFeatures) VectorWidth() int {
	switch {
	case f.HasAVX512F:
		return 64
	case f.HasAVX2, f.HasAVX:
		return 32
	case f.HasSSE4, f.HasNEON:
		return 16
	}
	return 0
}

// String describes available CPU features
func (f CPUFeatures) String() string {
	var features []string
	for _, c := range []struct {
		on   bool
		name string
	}{
		{f.HasSSE4, "SSE4"},
		{f.HasAVX, "AVX"},
		{f.HasAVX2, "AVX2"},
		{f.HasFMA, "FMA"},
		{f.HasAVX512F, "AVX512F"},
		{f.HasNEON, "NEON"},
		{f.HasSVE, "SVE"},
	} {
		if c.on {
			features = append(features, c.name)
		}
	}
	if len(features) == 0 {
		return "No SIMD extensions detected"
	}
	return "CPU features: " + strings.Join(features, ", ")
}
