package platform

// DetectGPU always reports "none" on Windows: only CPU-only recipe
// variants are built for this platform today.
func DetectGPU() string {
	return "none"
}

// DetectGPUWithRoot exists for API parity with the Linux build; Windows
// GPU detection doesn't read the filesystem, so root is ignored.
func DetectGPUWithRoot(_ string) string {
	return "none"
}
