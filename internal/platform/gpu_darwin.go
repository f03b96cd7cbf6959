package platform

// DetectGPU always reports "apple" on macOS: every supported Mac, Apple
// Silicon or Intel, has a Metal-capable GPU, so there's no vendor
// variant to distinguish.
func DetectGPU() string {
	return "apple"
}

// DetectGPUWithRoot exists for API parity with the Linux build; macOS
// GPU detection doesn't read the filesystem, so root is ignored.
func DetectGPUWithRoot(_ string) string {
	return "apple"
}
