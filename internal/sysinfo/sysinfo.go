// Package sysinfo reports host and runtime facts relevant to running the
// detectors, and checks them against minimum requirements.
package sysinfo

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info describes the machine and the linked vision backend.
type Info struct {
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	GoVersion       string `json:"go_version"`
	Hostname        string `json:"hostname,omitempty"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`

	LogicalCPUs       int    `json:"logical_cpus"`
	MemoryTotalMB     uint64 `json:"memory_total_mb,omitempty"`
	MemoryAvailableMB uint64 `json:"memory_available_mb,omitempty"`

	// OpenCVVersion is empty when the binary was built without OpenCV.
	OpenCVVersion  string `json:"opencv_version"`
	YuNetSupported bool   `json:"yunet_supported"`
}

// Requirements is the outcome of Check.
type Requirements struct {
	OpenCVVersionOK bool `json:"opencv_version_ok"`
	SystemSupported bool `json:"system_supported"`
}

// OK reports whether every requirement passed.
func (r Requirements) OK() bool {
	return r.OpenCVVersionOK && r.SystemSupported
}

// Collect gathers host facts. Host queries that fail leave their fields
// zero; runtime facts are always present.
func Collect(opencvVersion string) Info {
	info := Info{
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		GoVersion:      runtime.Version(),
		LogicalCPUs:    runtime.NumCPU(),
		OpenCVVersion:  opencvVersion,
		YuNetSupported: YuNetSupported(opencvVersion),
	}

	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelVersion = h.KernelVersion
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		info.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotalMB = vm.Total / (1024 * 1024)
		info.MemoryAvailableMB = vm.Available / (1024 * 1024)
	}
	return info
}

// Check evaluates info against the minimum requirements.
func Check(info Info) Requirements {
	return Requirements{
		OpenCVVersionOK: info.YuNetSupported,
		SystemSupported: info.OS == "linux" || info.OS == "darwin" || info.OS == "windows",
	}
}

// YuNetSupported reports whether an OpenCV version string is 4.5 or newer,
// the first release line shipping FaceDetectorYN.
func YuNetSupported(version string) bool {
	parts := strings.SplitN(strings.TrimSpace(version), ".", 3)
	if len(parts) < 2 {
		return false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	minor, err := strconv.Atoi(strings.TrimFunc(parts[1], func(r rune) bool { return r < '0' || r > '9' }))
	if err != nil {
		return false
	}
	return major > 4 || (major == 4 && minor >= 5)
}
