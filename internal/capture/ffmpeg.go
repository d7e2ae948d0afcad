// Package capture records the full-session audio artifact through an FFmpeg
// subprocess.
package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FFmpeg records from a system capture device into a timestamped m4a file.
// It implements the session.Capture interface.
type FFmpeg struct {
	dir         string
	inputFormat string // ffmpeg grabber: "pulse", "alsa", "avfoundation"
	device      string

	mu         sync.Mutex
	cmd        *exec.Cmd
	outputFile string
	stderrBuf  strings.Builder
}

// NewFFmpeg creates a capture backend writing into dir.
func NewFFmpeg(dir, inputFormat, device string) *FFmpeg {
	if inputFormat == "" {
		inputFormat = "pulse"
	}
	if device == "" {
		device = "default"
	}
	return &FFmpeg{dir: dir, inputFormat: inputFormat, device: device}
}

// Authorize verifies FFmpeg is installed and the capture device can actually
// be opened, by grabbing a fraction of a second from it. A device that cannot
// be opened is how a missing microphone permission shows up here.
func (f *FFmpeg) Authorize() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", f.inputFormat,
		"-i", f.device,
		"-t", "0.25",
		"-f", "null", "-",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("capture device %q not accessible: %v: %s", f.device, err, tail(string(output)))
	}
	return nil
}

// Start begins recording into a fresh timestamped file.
func (f *FFmpeg) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cmd != nil {
		return fmt.Errorf("capture already in progress")
	}
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f.outputFile = filepath.Join(f.dir, fmt.Sprintf("rec_%s.m4a", time.Now().Format("20060102_150405")))
	f.stderrBuf.Reset()

	cmd := exec.Command("ffmpeg",
		"-f", f.inputFormat,
		"-i", f.device,
		"-c:a", "aac",
		"-y",
		f.outputFile,
	)

	slog.Info("Starting FFmpeg capture", "command", strings.Join(cmd.Args, " "))

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	f.cmd = cmd
	go f.readOutput(stderr)
	return nil
}

// readOutput drains and buffers FFmpeg's stderr for diagnostics.
func (f *FFmpeg) readOutput(pipe io.ReadCloser) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		f.mu.Lock()
		f.stderrBuf.WriteString(line + "\n")
		f.mu.Unlock()
		slog.Debug("FFmpeg output", "line", line)
	}
	pipe.Close()
}

// Stop interrupts FFmpeg, waits for it to flush the container, validates the
// artifact and returns its path.
func (f *FFmpeg) Stop() (string, error) {
	f.mu.Lock()
	cmd := f.cmd
	f.cmd = nil
	outputFile := f.outputFile
	f.mu.Unlock()

	if cmd == nil {
		return "", fmt.Errorf("no capture in progress")
	}

	if cmd.Process != nil {
		slog.Debug("Sending SIGINT to FFmpeg process")
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			slog.Debug("Failed to send interrupt to FFmpeg, falling back to SIGKILL", "error", err)
			cmd.Process.Kill()
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil && !interruptedExit(err) {
			f.mu.Lock()
			stderr := f.stderrBuf.String()
			f.mu.Unlock()
			slog.Debug("FFmpeg stderr", "output", stderr)
			return "", fmt.Errorf("FFmpeg capture failed: %w", err)
		}
	case <-time.After(5 * time.Second):
		slog.Warn("FFmpeg did not exit within timeout, force killing")
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-done
	}

	if err := validateOutputFile(outputFile); err != nil {
		return "", err
	}

	slog.Debug("FFmpeg capture completed", "output", outputFile)
	return outputFile, nil
}

// interruptedExit reports whether the error is the normal outcome of stopping
// FFmpeg with a signal.
func interruptedExit(err error) bool {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	if exitErr.ExitCode() == 255 {
		return true
	}
	if exitErr.ProcessState != nil {
		state := exitErr.ProcessState.String()
		return state == "signal: interrupt" || state == "signal: killed"
	}
	return false
}

func validateOutputFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("recording file not found: %s", path)
	}
	if info.Size() < 1024 {
		return fmt.Errorf("recording failed: file too small (%d bytes)", info.Size())
	}
	return nil
}

func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= 3 {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-3:], "\n")
}
