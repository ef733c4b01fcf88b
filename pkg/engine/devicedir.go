package engine

import "strings"

// DeviceInfo is the subset of a malgo device description the selection
// policy needs. It is deliberately decoupled from malgo's own types so the
// selection functions below are pure and unit-testable without an audio
// backend.
type DeviceInfo struct {
	Name          string
	MaxInput      int
	MaxOutput     int
	IsDefaultIn   bool
	IsDefaultOut  bool
}

var physicalMicPriority = []string{"jabra", "evolve", "built-in", "macbook pro microphone"}
var virtualDeviceSkip = []string{"blackhole", "vb-cable", "aggregate", "multi-output"}
var virtualDeviceKeywords = []string{"blackhole", "vb-cable", "vb cable"}
var loopbackKeywords = []string{"blackhole", "vb-cable", "loopback", "voicemeeter"}

// SelectPhysicalMic picks the best physical capture device from a device
// list, skipping virtual/aggregate devices and preferring known headset
// brands, then the system default, then list order. Returns -1 if no
// candidate has any input channels.
func SelectPhysicalMic(devices []DeviceInfo) int {
	best := -1
	bestPriority := 1 << 30
	bestIsDefault := false

	for i, d := range devices {
		name := strings.ToLower(d.Name)
		if containsAny(name, virtualDeviceSkip) {
			continue
		}
		if d.MaxInput <= 0 {
			continue
		}
		priority := len(physicalMicPriority)
		for idx, keyword := range physicalMicPriority {
			if strings.Contains(name, keyword) {
				priority = idx
				break
			}
		}
		if best == -1 ||
			priority < bestPriority ||
			(priority == bestPriority && d.IsDefaultIn && !bestIsDefault) {
			best = i
			bestPriority = priority
			bestIsDefault = d.IsDefaultIn
		}
	}
	return best
}

// SelectVirtualOutput picks the loopback output device (BlackHole/VB-CABLE)
// that meeting software will capture from. It requires stereo output.
// Returns -1 if none is found.
func SelectVirtualOutput(devices []DeviceInfo) int {
	for i, d := range devices {
		name := strings.ToLower(d.Name)
		if containsAny(name, virtualDeviceKeywords) && d.MaxOutput >= 2 {
			return i
		}
	}
	return -1
}

// SelectLoopback picks an optional input device that mirrors the virtual
// output (so the engine can hear what the meeting app is playing). Unlike
// the mic and virtual output, its absence is non-fatal — callers degrade to
// a single-source (mic-only) transcript feed.
func SelectLoopback(devices []DeviceInfo) int {
	for i, d := range devices {
		name := strings.ToLower(d.Name)
		if containsAny(name, loopbackKeywords) && d.MaxInput > 0 {
			return i
		}
	}
	return -1
}

func containsAny(name string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}
