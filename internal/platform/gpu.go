package platform

// gpuVendor describes one PCI GPU vendor this engine can recognize, plus
// its rank when more than one GPU is present on a machine - lower ranks
// win, so a discrete NVIDIA or AMD card is preferred over an integrated
// Intel GPU.
type gpuVendor struct {
	name string
	rank int
}

// pciVendorToGPU maps a PCI vendor ID (as read from sysfs) to the GPU
// value recipes see as the GPU scope constant.
var pciVendorToGPU = map[string]gpuVendor{
	"0x10de": {name: "nvidia", rank: 0},
	"0x1002": {name: "amd", rank: 1},
	"0x8086": {name: "intel", rank: 2},
}

// ValidGPUTypes lists every value DetectGPU can return across platforms.
var ValidGPUTypes = []string{"nvidia", "amd", "intel", "apple", "none"}
