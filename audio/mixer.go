package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
)

// DefaultPeriod is how much audio the mixer writes per wakeup
const DefaultPeriod = 20 * time.Millisecond

// Mixer sums playing streamers and writes PCM to an output at a fixed pace
type Mixer struct {
	output io.Writer
	period time.Duration

	playQueue chan beep.Streamer
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool
	stopped   atomic.Bool

	// Accessed only by mix goroutine
	mix     beep.Mixer
	samples [][2]float64
	out     []byte

	played  atomic.Uint64
	dropped atomic.Uint64

	errChan chan error
}

// NewMixer creates a mixer writing period-sized chunks to out
func NewMixer(out io.Writer, period time.Duration) *Mixer {
	frames := SampleRate.N(period)
	return &Mixer{
		output:    out,
		period:    period,
		playQueue: make(chan beep.Streamer, 32),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		samples:   make([][2]float64, frames),
		out:       make([]byte, frames*bytesPerFrame),
		errChan:   make(chan error, 1),
	}
}

// Start begins the mixing loop
func (m *Mixer) Start() {
	if m.started.CompareAndSwap(false, true) {
		go m.loop()
	}
}

// Stop halts the loop and waits for it
func (m *Mixer) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		close(m.stopChan)
	}
	if m.started.Load() {
		<-m.done
	}
}

// Play queues s; false when the queue is full or the mixer stopped
func (m *Mixer) Play(s beep.Streamer) bool {
	if m.stopped.Load() {
		return false
	}
	select {
	case m.playQueue <- s:
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

// Errors returns channel for pipe errors
func (m *Mixer) Errors() <-chan error {
	return m.errChan
}

// Stats returns played and dropped counts
func (m *Mixer) Stats() (played, dropped uint64) {
	return m.played.Load(), m.dropped.Load()
}

func (m *Mixer) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return

		case s := <-m.playQueue:
			m.add(s)
			m.drainQueue(4)

		case <-ticker.C:
			// Silence keeps the pipe alive
			if _, err := m.output.Write(m.render()); err != nil {
				select {
				case m.errChan <- fmt.Errorf("%w: %v", ErrPipeClosed, err):
				default:
				}
				return
			}
		}
	}
}

func (m *Mixer) add(s beep.Streamer) {
	m.mix.Add(s)
	m.played.Add(1)
}

// drainQueue processes up to n additional queued requests
func (m *Mixer) drainQueue(n int) {
	for range n {
		select {
		case s := <-m.playQueue:
			m.add(s)
		default:
			return
		}
	}
}

// render mixes one period of audio into the output buffer
func (m *Mixer) render() []byte {
	n, _ := m.mix.Stream(m.samples)
	clear(m.samples[n:])
	floatToBytes(m.samples, m.out)
	return m.out
}

// floatToBytes converts stereo samples to interleaved int16 LE bytes
// Applies soft limiting before hard clip
func floatToBytes(in [][2]float64, out []byte) {
	for i, frame := range in {
		idx := i * bytesPerFrame
		binary.LittleEndian.PutUint16(out[idx:], uint16(toInt16(frame[0])))
		binary.LittleEndian.PutUint16(out[idx+2:], uint16(toInt16(frame[1])))
	}
}

func toInt16(v float64) int16 {
	// Soft limiter above 0.8
	if v > 0.8 {
		v = 0.8 + 0.2*(1.0-1.0/(1.0+(v-0.8)*5.0))
	} else if v < -0.8 {
		v = -0.8 - 0.2*(1.0-1.0/(1.0+(-v-0.8)*5.0))
	}
	v = min(max(v, -1), 1)
	return int16(v * 32767)
}
