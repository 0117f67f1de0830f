package stt

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

type Device string

const (
	CPU   Device = "cpu"
	CUDA  Device = "cuda"
	Metal Device = "metal"
)

// Probe reports whether an accelerator can be used on this machine.
type Probe struct {
	Device    Device
	Available func() bool
}

// DefaultProbes lists accelerators in order of preference.
func DefaultProbes() []Probe {
	return []Probe{
		{Device: CUDA, Available: cudaAvailable},
		{Device: Metal, Available: metalAvailable},
	}
}

// SelectDevice picks the first available accelerator, or the CPU when
// forced or when nothing else is available.
func SelectDevice(cpu bool, probes []Probe) Device {
	if cpu {
		return CPU
	}
	for _, p := range probes {
		if p.Available != nil && p.Available() {
			return p.Device
		}
	}
	return CPU
}

// ParseDevice accepts cpu, cuda, metal or auto (returned as "").
func ParseDevice(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case "", "auto":
		return "", nil
	case CPU, CUDA, Metal:
		return d, nil
	default:
		return "", fmt.Errorf("unknown device %q", s)
	}
}

func cudaAvailable() bool {
	if _, err := os.Stat("/dev/nvidia0"); err == nil {
		return true
	}
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}

func metalAvailable() bool {
	return runtime.GOOS == "darwin" && runtime.GOARCH == "arm64"
}
