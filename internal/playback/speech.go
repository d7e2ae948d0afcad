package playback

import (
	"fmt"
	"os/exec"
	"strings"
)

// ExecSynthesizer speaks text through whichever local speech synthesizer is
// installed.
type ExecSynthesizer struct{}

func (ExecSynthesizer) Speak(text string) (Playback, error) {
	synth, err := findSynthesizer()
	if err != nil {
		return nil, fmt.Errorf("no suitable speech synthesizer found: %w", err)
	}

	var cmd *exec.Cmd
	switch synth {
	case "say":
		cmd = exec.Command("say", text)
	case "espeak-ng":
		cmd = exec.Command("espeak-ng", "-v", "en-us", text)
	case "espeak":
		cmd = exec.Command("espeak", "-v", "en-us", text)
	case "spd-say":
		// -w blocks until speech finishes, so process exit marks natural end
		cmd = exec.Command("spd-say", "-w", text)
	default:
		return nil, fmt.Errorf("unsupported synthesizer: %s", synth)
	}

	return startProcess(cmd)
}

func findSynthesizer() (string, error) {
	synths := []string{"say", "espeak-ng", "espeak", "spd-say"}
	for _, synth := range synths {
		if _, err := exec.LookPath(synth); err == nil {
			return synth, nil
		}
	}
	return "", fmt.Errorf("no speech synthesizer found (tried: %s)", strings.Join(synths, ", "))
}
