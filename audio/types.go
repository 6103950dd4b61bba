package audio

import (
	"errors"

	"github.com/gopxl/beep"
)

// Output format written to every backend: interleaved stereo s16le
const (
	SampleRate    beep.SampleRate = 44100
	bytesPerFrame                 = 4
)

// BackendType identifies the audio backend
type BackendType int

const (
	BackendPulse BackendType = iota
	BackendPipeWire
	BackendALSA
	BackendSoX
	BackendFFplay
	BackendOSS
)

// BackendConfig describes a CLI audio backend fed raw PCM on stdin,
// or a device file written directly
type BackendConfig struct {
	Type BackendType
	Name string
	Path string
	Args []string
}

var (
	ErrNoAudioBackend = errors.New("no compatible audio backend found")
	ErrPipeClosed     = errors.New("audio pipe closed")
	ErrRunning        = errors.New("audio engine already running")
)
