package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gopxl/beep"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/tickflow/asset"
)

var demoFormat = beep.Format{SampleRate: 44100, NumChannels: 1, Precision: 2}

var demoTones = []struct {
	path     string
	freq     float64
	duration time.Duration
}{
	{"sounds/chime.wav", 880, 600 * time.Millisecond},
	{"sounds/click.wav", 1760, 40 * time.Millisecond},
	{"sounds/drone.wav", 110, 2 * time.Second},
}

// generateAssets writes a package of tones plus the manifest used by the
// offline and host play modes
func generateAssets(root, pkg, ver string) ([]string, error) {
	dir := filepath.Join(root, pkg)
	files := make([]string, 0, len(demoTones))
	for _, tone := range demoTones {
		out := filepath.Join(dir, filepath.FromSlash(tone.path))
		if err := asset.WriteWAV(out, asset.Tone(tone.freq, tone.duration, demoFormat.SampleRate), demoFormat); err != nil {
			return nil, err
		}
		files = append(files, tone.path)
	}

	data, err := yaml.Marshal(asset.Manifest{Package: pkg, Version: ver, Files: files})
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, asset.ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return files, nil
}
