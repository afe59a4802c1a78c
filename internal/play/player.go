package play

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoSource is returned by Play when nothing is loaded.
var ErrNoSource = errors.New("no audio source loaded")

// players in order of preference
var players = []string{"vlc", "mpv", "ffplay", "aplay"}

// Player plays one loaded file at a time through an external player.
// Play does not block; Pause stops the running process.
type Player struct {
	preferred string
	logWriter io.Writer

	lookPath func(string) (string, error)
	command  func(name string, args ...string) *exec.Cmd

	mu     sync.Mutex
	source string
	cmd    *exec.Cmd
	done   chan struct{}
}

// New creates a player. preferred may be empty to take the first available one.
// Player output goes to logWriter, nil discards it.
func New(preferred string, logWriter io.Writer) *Player {
	if logWriter == nil {
		logWriter = io.Discard
	}
	return &Player{
		preferred: preferred,
		logWriter: logWriter,
		lookPath:  exec.LookPath,
		command:   exec.Command,
	}
}

// Load sets the source. A running playback of the previous source is stopped.
func (p *Player) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file not found: %s", path)
	}

	p.Pause()

	p.mu.Lock()
	p.source = path
	p.mu.Unlock()
	return nil
}

// Source returns the loaded path, empty when cleared.
func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Play starts playback of the loaded source in the background.
func (p *Player) Play() error {
	p.Pause()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == "" {
		return ErrNoSource
	}

	player, err := p.findAudioPlayer(p.source)
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	cmd := p.command(player, argsFor(player, p.source)...)
	cmd.Stdout = p.logWriter
	cmd.Stderr = p.logWriter
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", player, err)
	}

	slog.Info("Playing", "file", p.source, "player", player)

	done := make(chan struct{})
	p.cmd = cmd
	p.done = done

	go func() {
		err := cmd.Wait()
		if err != nil {
			slog.Debug("Player exited", "player", player, "error", err)
		} else {
			slog.Debug("Playback completed", "player", player)
		}

		p.mu.Lock()
		if p.cmd == cmd {
			p.cmd = nil
		}
		p.mu.Unlock()
		close(done)
	}()

	return nil
}

// Pause stops playback if running. The source stays loaded.
func (p *Player) Pause() {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.cmd = nil
	p.mu.Unlock()

	if cmd == nil {
		return
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	<-done
}

// Clear drops the loaded source.
func (p *Player) Clear() {
	p.mu.Lock()
	p.source = ""
	p.mu.Unlock()
}

// Playing reports whether a player process is running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

// Wait blocks until the current playback finishes.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (p *Player) findAudioPlayer(path string) (string, error) {
	candidates := players
	if p.preferred != "" {
		candidates = append([]string{p.preferred}, players...)
	}

	wav := strings.EqualFold(filepath.Ext(path), ".wav")
	for _, player := range candidates {
		// aplay only handles WAV
		if player == "aplay" && !wav {
			continue
		}
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(candidates, ", "))
}

func argsFor(player, path string) []string {
	switch player {
	case "vlc":
		return []string{"--intf", "dummy", "--play-and-exit", path}
	case "mpv":
		return []string{"--no-video", path}
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "error", path}
	default:
		return []string{path}
	}
}
