package volume

import (
	"fmt"
	"os/exec"

	"github.com/gritskevich/pi-sat/internal/errs"
)

// ALSASink drives the system mixer via amixer, the standard control
// surface on embedded Linux audio devices. No ALSA mixer binding
// appears anywhere in the example pack, so this talks to the same
// binary a human operator would use from a shell.
type ALSASink struct {
	control string
	card    string
}

// NewALSASink builds a Sink against the named mixer control (e.g.
// "PCM", "Master") on the default sound card.
func NewALSASink(control string) *ALSASink {
	if control == "" {
		control = "PCM"
	}
	return &ALSASink{control: control}
}

// NewALSASinkForCard is NewALSASink against a specific card index,
// for devices exposing more than one mixer.
func NewALSASinkForCard(control, card string) *ALSASink {
	s := NewALSASink(control)
	s.card = card
	return s
}

// SetLevel sets the control to level percent. amixer clamps out-of-
// range percentages itself, but VolumeManager never calls this with a
// value outside [0, 100] in the first place.
func (s *ALSASink) SetLevel(level int) error {
	const op = "volume.ALSASink.SetLevel"
	args := []string{"set", s.control, fmt.Sprintf("%d%%", level)}
	if s.card != "" {
		args = append([]string{"-c", s.card}, args...)
	}
	if err := exec.Command("amixer", args...).Run(); err != nil {
		return errs.Wrap(errs.KindTransientHardware, op, err)
	}
	return nil
}
