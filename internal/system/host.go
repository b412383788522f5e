package system

import (
	"log/slog"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfo describes the machine a session was captured on.
type HostInfo struct {
	Hostname    string `json:"hostname" yaml:"hostname"`
	OS          string `json:"os" yaml:"os"`
	Platform    string `json:"platform" yaml:"platform"`
	Arch        string `json:"arch" yaml:"arch"`
	CPUModel    string `json:"cpuModel" yaml:"cpuModel"`
	LogicalCPUs int    `json:"logicalCpus" yaml:"logicalCpus"`
	TotalMemory uint64 `json:"totalMemory" yaml:"totalMemory"`
	Encoder     string `json:"encoder,omitempty" yaml:"encoder,omitempty"`
}

// HostProber returns provenance for the current machine.
type HostProber interface {
	Probe() *HostInfo
}

// GopsutilProber reads host facts through gopsutil. Failing lookups leave
// their fields zero; provenance is best effort.
type GopsutilProber struct {
	Encoder string
}

func (p GopsutilProber) Probe() *HostInfo {
	info := &HostInfo{
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Encoder: p.Encoder,
	}

	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform + " " + h.PlatformVersion
	} else {
		slog.Debug("host info unavailable", "err", err)
	}

	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		info.LogicalCPUs = n
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
	}

	return info
}
