package cmd

import (
	"fmt"
	"io"
	"sync"
)

// terminalView renders session updates as lines on a terminal.
type terminalView struct {
	mu     sync.Mutex
	out    io.Writer
	status string

	startEnabled bool
	stopEnabled  bool
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out}
}

func (v *terminalView) SetStatus(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if text == v.status {
		return
	}
	v.status = text
	fmt.Fprintf(v.out, "● %s\n", text)
}

func (v *terminalView) SetControls(startEnabled, stopEnabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.startEnabled = startEnabled
	v.stopEnabled = stopEnabled
}

func (v *terminalView) ShowPlayback(source string) {
	fmt.Fprintf(v.out, "▶ Playback: %s\n", source)
}

func (v *terminalView) HidePlayback() {}

func (v *terminalView) ShowTranscript(text string) {
	fmt.Fprintf(v.out, "📝 %s\n", text)
}

func (v *terminalView) HideTranscript() {}

func (v *terminalView) ShowDownload(label string) {
	fmt.Fprintf(v.out, "💾 [d] %s\n", label)
}

func (v *terminalView) HideDownload() {}

// prompt lists the keys that currently do something
func (v *terminalView) prompt() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	keys := ""
	if v.startEnabled {
		keys += "[r]ecord "
	}
	if v.stopEnabled {
		keys += "[s]top "
	}
	return keys + "[c]lose [d]ownload [p]lay [l]ang <src> <tgt> [q]uit > "
}
