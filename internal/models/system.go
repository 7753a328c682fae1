// -----------------------------------------------------------------------
// System Profile - Target console presets (CPU, ROM extension)
// -----------------------------------------------------------------------

package models

import "sort"

// SystemProfile describes one supported target console. The profile defaults
// the artifact extension and documents the CPU the toolchain targets; it does
// not change stage behavior, which stays pure configuration.
type SystemProfile struct {
	Name         string `json:"name"`          // Manifest system name, e.g. "nes"
	CPU          string `json:"cpu"`           // Primary CPU, e.g. "6502"
	ROMExtension string `json:"rom_extension"` // Default artifact suffix, e.g. ".nes"
	AudioCPU     string `json:"audio_cpu,omitempty"`
}

// systemProfiles maps manifest system names to their presets. The 6502
// family shares a CPU across very different machines; the SNES carries a
// separate audio CPU.
var systemProfiles = map[string]SystemProfile{
	"nes":     {Name: "nes", CPU: "6502", ROMExtension: ".nes"},
	"c64":     {Name: "c64", CPU: "6502", ROMExtension: ".prg"},
	"appleII": {Name: "appleII", CPU: "6502", ROMExtension: ".dsk"},
	"a2600":   {Name: "a2600", CPU: "6502", ROMExtension: ".a26"},
	"a5200":   {Name: "a5200", CPU: "6502", ROMExtension: ".a52"},
	"a7800":   {Name: "a7800", CPU: "6502", ROMExtension: ".a78"},
	"pce":     {Name: "pce", CPU: "huc6280", ROMExtension: ".pce"},
	"sms":     {Name: "sms", CPU: "z80", ROMExtension: ".sms"},
	"gg":      {Name: "gg", CPU: "z80", ROMExtension: ".gg"},
	"msx":     {Name: "msx", CPU: "z80", ROMExtension: ".rom"},
	"zx":      {Name: "zx", CPU: "z80", ROMExtension: ".tap"},
	"gb":      {Name: "gb", CPU: "gb", ROMExtension: ".gb"},
	"gbc":     {Name: "gbc", CPU: "gb", ROMExtension: ".gbc"},
	"snes":    {Name: "snes", CPU: "wdc65816", ROMExtension: ".sfc", AudioCPU: "spc700"},
}

// ProfileFor returns the profile for a manifest system name.
func ProfileFor(system string) (SystemProfile, bool) {
	p, ok := systemProfiles[system]
	return p, ok
}

// DefaultProfile returns the nes profile, the reference target.
func DefaultProfile() SystemProfile {
	return systemProfiles["nes"]
}

// ProfileForExtension returns the profile whose ROM extension matches,
// resolving the system from an artifact name when the manifest leaves the
// system unset. Ambiguity cannot arise: extensions are unique per system.
func ProfileForExtension(ext string) (SystemProfile, bool) {
	for _, name := range SystemNames() {
		if systemProfiles[name].ROMExtension == ext {
			return systemProfiles[name], true
		}
	}
	return SystemProfile{}, false
}

// SystemNames returns the supported system names, sorted.
func SystemNames() []string {
	names := make([]string, 0, len(systemProfiles))
	for name := range systemProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
