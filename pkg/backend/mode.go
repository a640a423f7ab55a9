package backend

import "strings"

// Mode is a lighting effect understood by the firmware. Index is the value
// sent to the daemon.
type Mode struct {
	Index uint8  `json:"index" yaml:"index"`
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
}

// Modes lists the lighting effects in firmware order.
var Modes = []Mode{
	{0, "SOLID_COLOR", "Solid Color"},
	{1, "PER_KEY", "Per Key"},
	{2, "CYCLE_ALL", "Cosmic Background"},
	{3, "CYCLE_LEFT_RIGHT", "Horizontal Scan"},
	{4, "CYCLE_UP_DOWN", "Vertical Scan"},
	{5, "CYCLE_OUT_IN", "Event Horizon"},
	{6, "CYCLE_OUT_IN_DUAL", "Binary Galaxies"},
	{7, "RAINBOW_MOVING_CHEVRON", "Spacetime"},
	{8, "CYCLE_PINWHEEL", "Pinwheel"},
	{9, "CYCLE_SPIRAL", "Spiral Galaxy"},
	{10, "RAINDROPS", "Elements"},
	{11, "SPLASH", "Splashdown"},
	{12, "MULTISPLASH", "Meteor Shower"},
	{13, "ACTIVE_KEYS", "Active Keys"},
	{14, "DISABLED", "Disabled"},
}

// ModeByIndex looks up a mode by its firmware value.
func ModeByIndex(index uint8) (Mode, bool) {
	if int(index) >= len(Modes) {
		return Mode{}, false
	}
	return Modes[index], true
}

// ModeByID looks up a mode by its identifier, ignoring case.
func ModeByID(id string) (Mode, bool) {
	for _, m := range Modes {
		if strings.EqualFold(m.ID, id) {
			return m, true
		}
	}
	return Mode{}, false
}
