package chaos

import "sort"

// Profile is a named set of global faults.
type Profile struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Faults      Faults `json:"faults"`
}

var builtinProfiles = map[string]Profile{
	"slow-device": {
		Name:        "slow-device",
		Description: "Device that takes 100-500ms to answer",
		Faults: Faults{
			Latency: &LatencyFault{Min: "100ms", Max: "500ms", Probability: 1.0},
		},
	},
	"flaky-link": {
		Name:        "flaky-link",
		Description: "Link that loses one answer in ten",
		Faults: Faults{
			Latency: &LatencyFault{Min: "0ms", Max: "50ms", Probability: 1.0},
			Drop:    &DropFault{Probability: 0.10},
		},
	},
	"noisy-line": {
		Name:        "noisy-line",
		Description: "Electrical noise flipping bits in one answer in five",
		Faults: Faults{
			Corrupt: &CorruptFault{Rate: 0.05, Probability: 0.20},
		},
	},
	"brownout": {
		Name:        "brownout",
		Description: "Device resetting mid-answer",
		Faults: Faults{
			Truncate: &TruncateFault{MinPercent: 0.2, MaxPercent: 0.8, Probability: 0.15},
			Drop:     &DropFault{Probability: 0.05},
		},
	},
	"offline": {
		Name:        "offline",
		Description: "Device that never answers",
		Faults: Faults{
			Drop: &DropFault{Probability: 1.0},
		},
	},
	"timeout": {
		Name:        "timeout",
		Description: "Answers arriving after a typical 1s master timeout",
		Faults: Faults{
			Latency: &LatencyFault{Min: "1500ms", Max: "1500ms", Probability: 1.0},
		},
	},
}

// ListProfiles returns the built-in profiles sorted by name.
func ListProfiles() []Profile {
	profiles := make([]Profile, 0, len(builtinProfiles))
	for _, p := range builtinProfiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})
	return profiles
}

// GetProfile returns a built-in profile by name.
func GetProfile(name string) (Profile, bool) {
	p, ok := builtinProfiles[name]
	return p, ok
}

// ProfileNames returns the built-in profile names sorted alphabetically.
func ProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// clone deep-copies f so callers cannot mutate the built-in registry.
func (f Faults) clone() *Faults {
	out := &Faults{}
	if f.Latency != nil {
		v := *f.Latency
		out.Latency = &v
	}
	if f.Drop != nil {
		v := *f.Drop
		out.Drop = &v
	}
	if f.Corrupt != nil {
		v := *f.Corrupt
		out.Corrupt = &v
	}
	if f.Truncate != nil {
		v := *f.Truncate
		out.Truncate = &v
	}
	return out
}
