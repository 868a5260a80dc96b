package config

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	ProfileLow  = "low"
	ProfileHigh = "high"
)

// Profile fixes the canonical frame size, rate and encoder settings for
// one composition job. It is chosen once at job start and injected into
// the renderer and the assembler.
type Profile struct {
	Name    string
	Width   int
	Height  int
	FPS     int
	Preset  string
	CRF     int
	Threads int
}

var profiles = map[string]Profile{
	ProfileLow: {
		Name:    ProfileLow,
		Width:   480,
		Height:  854,
		FPS:     24,
		Preset:  "ultrafast",
		CRF:     28,
		Threads: 1,
	},
	ProfileHigh: {
		Name:    ProfileHigh,
		Width:   720,
		Height:  1280,
		FPS:     30,
		Preset:  "medium",
		CRF:     23,
		Threads: 4,
	},
}

const (
	highProfileMinCPUs  = 4
	highProfileMinBytes = 4 << 30
)

// DetectProfile returns the profile named by override, or probes the host
// when override is empty: the high profile needs at least 4 logical CPUs
// and 4 GiB of RAM, anything less gets the low profile.
func DetectProfile(override string) Profile {
	if p, ok := profiles[override]; ok {
		return p
	}

	cpus, err := cpu.Counts(true)
	if err != nil || cpus < highProfileMinCPUs {
		return profiles[ProfileLow]
	}
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total < highProfileMinBytes {
		return profiles[ProfileLow]
	}
	return profiles[ProfileHigh]
}
