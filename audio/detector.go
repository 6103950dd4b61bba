package audio

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

type candidate struct {
	typ  BackendType
	name string
	bin  string
	args func(rate string) []string
}

// candidates in preference order
var candidates = []candidate{
	{BackendPulse, "pacat", "pacat", func(rate string) []string {
		return []string{"--raw", "--format=s16le", "--rate=" + rate, "--channels=2", "--latency-msec=50", "--playback"}
	}},
	{BackendPipeWire, "pw-cat", "pw-cat", func(rate string) []string {
		return []string{"--playback", "--format=s16", "--rate=" + rate, "--channels=2", "--latency=50ms", "-"}
	}},
	{BackendALSA, "aplay", "aplay", func(rate string) []string {
		return []string{"-t", "raw", "-f", "S16_LE", "-r", rate, "-c", "2", "-q"}
	}},
	{BackendSoX, "sox", "play", func(rate string) []string {
		return []string{"-t", "raw", "-e", "signed", "-b", "16", "-c", "2", "-r", rate, "-", "-d", "-q"}
	}},
	{BackendFFplay, "ffplay", "ffplay", func(rate string) []string {
		return []string{"-nodisp", "-autoexit", "-f", "s16le", "-ac", "2", "-ar", rate,
			"-probesize", "32", "-analyzeduration", "0", "-i", "pipe:0", "-loglevel", "quiet"}
	}},
}

// DetectBackend returns the first player found on PATH, falling back to the
// OSS device on FreeBSD
func DetectBackend() (*BackendConfig, error) {
	rate := strconv.Itoa(int(SampleRate))
	for _, c := range candidates {
		path, err := exec.LookPath(c.bin)
		if err != nil {
			continue
		}
		return &BackendConfig{Type: c.typ, Name: c.name, Path: path, Args: c.args(rate)}, nil
	}

	if runtime.GOOS == "freebsd" {
		if _, err := os.Stat("/dev/dsp"); err == nil {
			return &BackendConfig{Type: BackendOSS, Name: "oss", Path: "/dev/dsp"}, nil
		}
	}
	return nil, ErrNoAudioBackend
}
