// Package chaos injects faults into answers to simulate an unreliable device
// or line.
//
// # Fault Types
//
//   - latency: the answer is delayed by a random duration in [min, max]
//   - drop: the ask matches but no answer is sent
//   - corrupt: random bits are flipped in a fraction of the answer bytes
//   - truncate: only a leading part of the answer is sent
//
// # Configuration
//
// Faults apply globally or per ask pattern. The first rule whose ask matches
// the frame decides; global faults only apply to frames no rule matched.
//
//	cfg := &chaos.Config{
//	    Enabled: true,
//	    Global: &chaos.Faults{
//	        Latency: &chaos.LatencyFault{Min: "10ms", Max: "50ms", Probability: 1},
//	    },
//	    Rules: []chaos.Rule{{
//	        Ask:    "0x10 0x58 $1 0x5B 0x16",
//	        Faults: chaos.Faults{Drop: &chaos.DropFault{Probability: 0.2}},
//	    }},
//	}
//
//	inj, err := chaos.NewInjector(cfg, nil)
//	responder := inj.Wrap(repeater)
//
// # Profiles
//
// Named profiles (see ListProfiles) bundle common settings, e.g. "flaky-link"
// or "noisy-line". Setting Config.Profile uses the profile's faults as the
// global faults when Global is unset.
package chaos
