package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// PCI class codes for display controllers: the top 16 bits of the class
// register, covering plain VGA controllers and the 3D-only class some
// discrete cards (e.g., NVIDIA Tesla) report instead.
const (
	pciClassVGA = "0x0300"
	pciClass3D  = "0x0302"
)

// DetectGPU reports the best GPU vendor found on the host by walking
// /sys/bus/pci/devices. Recipes read this through the GPU scope constant
// to pick a CUDA/ROCm/CPU-only variant of a build.
func DetectGPU() string {
	return DetectGPUWithRoot("")
}

// DetectGPUWithRoot is DetectGPU with the sysfs root overridable, so
// tests can point it at a synthetic device tree instead of the real
// machine's /sys.
func DetectGPUWithRoot(root string) string {
	if root == "" {
		root = "/"
	}

	classFiles, err := filepath.Glob(filepath.Join(root, "sys", "bus", "pci", "devices", "*", "class"))
	if err != nil || len(classFiles) == 0 {
		return "none"
	}

	best := ""
	bestRank := len(pciVendorToGPU) // worse than any recognized vendor

	for _, classFile := range classFiles {
		classData, err := os.ReadFile(classFile)
		if err != nil || !isDisplayController(strings.TrimSpace(string(classData))) {
			continue
		}

		vendorData, err := os.ReadFile(filepath.Join(filepath.Dir(classFile), "vendor"))
		if err != nil {
			continue
		}

		vendor, ok := pciVendorToGPU[strings.TrimSpace(string(vendorData))]
		if !ok || vendor.rank >= bestRank {
			continue
		}
		best, bestRank = vendor.name, vendor.rank
	}

	if best == "" {
		return "none"
	}
	return best
}

// isDisplayController reports whether a PCI class string (format
// "0xCCSSPP": class, subclass, prog-if) names a VGA or 3D controller,
// checking just the class+subclass prefix.
func isDisplayController(classStr string) bool {
	if len(classStr) < 6 {
		return false
	}
	prefix := classStr[:6]
	return prefix == pciClassVGA || prefix == pciClass3D
}
