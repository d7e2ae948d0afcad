package playback

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// process adapts a running subprocess to the Playback interface. Done closes
// once when the process exits; Stop kills it, which also resolves Done.
type process struct {
	cmd      *exec.Cmd
	done     chan struct{}
	stopOnce sync.Once
}

func startProcess(cmd *exec.Cmd) (*process, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) Stop() {
	p.stopOnce.Do(func() {
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
	})
}

// ExecPlayer plays clip files through whichever local audio player is
// installed.
type ExecPlayer struct{}

func (ExecPlayer) Play(path string) (Playback, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %s", path)
	}

	player, err := findAudioPlayer()
	if err != nil {
		return nil, fmt.Errorf("no suitable audio player found: %w", err)
	}

	var cmd *exec.Cmd
	switch player {
	case "vlc":
		cmd = exec.Command("vlc", "--play-and-exit", "--intf", "dummy", path)
	case "mpv":
		cmd = exec.Command("mpv", "--no-video", path)
	case "ffplay":
		cmd = exec.Command("ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", path)
	default:
		return nil, fmt.Errorf("unsupported player: %s", player)
	}

	return startProcess(cmd)
}

func findAudioPlayer() (string, error) {
	// Preference order
	players := []string{"vlc", "mpv", "ffplay"}
	for _, player := range players {
		if _, err := exec.LookPath(player); err == nil {
			return player, nil
		}
	}
	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
