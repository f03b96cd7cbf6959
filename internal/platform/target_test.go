package platform

import (
	"runtime"
	"testing"
)

func TestTarget_OS(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		want     string
	}{
		{name: "linux amd64", platform: "linux/amd64", want: "linux"},
		{name: "linux arm64", platform: "linux/arm64", want: "linux"},
		{name: "darwin arm64", platform: "darwin/arm64", want: "darwin"},
		{name: "darwin amd64", platform: "darwin/amd64", want: "darwin"},
		{name: "windows amd64", platform: "windows/amd64", want: "windows"},
		{name: "empty platform", platform: "", want: ""},
		{name: "no slash", platform: "linux", want: "linux"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := Target{Platform: tt.platform}
			if got := target.OS(); got != tt.want {
				t.Errorf("Target.OS() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTarget_Arch(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		want     string
	}{
		{name: "linux amd64", platform: "linux/amd64", want: "amd64"},
		{name: "linux arm64", platform: "linux/arm64", want: "arm64"},
		{name: "darwin arm64", platform: "darwin/arm64", want: "arm64"},
		{name: "darwin amd64", platform: "darwin/amd64", want: "amd64"},
		{name: "windows amd64", platform: "windows/amd64", want: "amd64"},
		{name: "empty platform", platform: "", want: ""},
		{name: "no slash returns empty", platform: "linux", want: ""},
		{name: "trailing slash", platform: "linux/", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := Target{Platform: tt.platform}
			if got := target.Arch(); got != tt.want {
				t.Errorf("Target.Arch() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTarget(t *testing.T) {
	target := NewTarget("linux/amd64")
	if target.Platform != "linux/amd64" {
		t.Errorf("Platform = %q, want %q", target.Platform, "linux/amd64")
	}
}

func TestDetectTarget(t *testing.T) {
	target, err := DetectTarget()
	if err != nil {
		t.Fatalf("DetectTarget() error = %v", err)
	}
	if target.OS() != runtime.GOOS {
		t.Errorf("OS() = %q, want %q", target.OS(), runtime.GOOS)
	}
	if target.Arch() != runtime.GOARCH {
		t.Errorf("Arch() = %q, want %q", target.Arch(), runtime.GOARCH)
	}
}
