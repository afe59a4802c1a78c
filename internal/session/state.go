package session

import "errors"

// State represents the current state of the session controller
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateReady      State = "ready"
)

// ErrInvalidState is returned when an operation is not allowed in the current state.
var ErrInvalidState = errors.New("invalid session state")

// Status texts shown to the user
const (
	StatusReady      = "Ready to record"
	StatusRecording  = "Recording..."
	StatusProcessing = "Processing..."
	StatusComplete   = "Translation complete! Play audio..."
	StatusNetwork    = "Network error: Cannot reach backend. Check API URL."
)

// View is the set of UI affordances the controller drives. Methods are called
// with the controller lock held and must not call back into the controller.
type View interface {
	SetStatus(text string)
	SetControls(startEnabled, stopEnabled bool)
	ShowPlayback(source string)
	HidePlayback()
	ShowTranscript(text string)
	HideTranscript()
	ShowDownload(label string)
	HideDownload()
}

// Snapshot is the derived UI state.
type Snapshot struct {
	State             State
	Status            string
	StartEnabled      bool
	StopEnabled       bool
	PlaybackVisible   bool
	PlaybackSource    string
	PlaybackMimeType  string
	TranscriptVisible bool
	Transcript        string
	DownloadVisible   bool
	DownloadLabel     string
}

// NopView discards every update. Snapshot still tracks the state.
type NopView struct{}

func (NopView) SetStatus(string) {}
func (NopView) SetControls(bool, bool) {}
func (NopView) ShowPlayback(string) {}
func (NopView) HidePlayback() {}
func (NopView) ShowTranscript(string) {}
func (NopView) HideTranscript() {}
func (NopView) ShowDownload(string) {}
func (NopView) HideDownload() {}
