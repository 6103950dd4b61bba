package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/lixenwraith/tickflow/engine"
	"github.com/lixenwraith/tickflow/procedure"
	"github.com/lixenwraith/tickflow/status"
)

// ModuleName is the scheduler name of the dashboard module
const ModuleName = "view"

// DefaultRefresh is the minimum tick time between redraws
const DefaultRefresh = 100 * time.Millisecond

const keyWidth = 10

var (
	styleTitle = tcell.StyleDefault.Bold(true)
	styleKey   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleValue = tcell.StyleDefault
	styleBar   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleError = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// View draws the runtime dashboard: procedure, tasks, asset progress and the
// module update order. Escape, Ctrl-C and 'q' call the quit function, 'p'
// toggles the pause clock
type View struct {
	screen  tcell.Screen
	events  <-chan tcell.Event
	logger  zerolog.Logger
	refresh time.Duration
	quit    func()
	clock   *engine.PausableClock

	sched  *engine.Scheduler
	since  time.Duration
	frames uint64
}

// ViewOption configures a View
type ViewOption func(*View)

// WithRefresh sets the minimum tick time between redraws; 0 redraws every tick
func WithRefresh(d time.Duration) ViewOption {
	return func(v *View) { v.refresh = d }
}

// WithQuit sets the function called when the user asks to quit
func WithQuit(fn func()) ViewOption {
	return func(v *View) { v.quit = fn }
}

// WithPause lets the user pause and resume clock
func WithPause(clock *engine.PausableClock) ViewOption {
	return func(v *View) { v.clock = clock }
}

// NewView creates a dashboard drawing on screen; events may be nil
func NewView(screen tcell.Screen, events <-chan tcell.Event, logger zerolog.Logger, opts ...ViewOption) *View {
	v := &View{
		screen:  screen,
		events:  events,
		logger:  logger.With().Str("component", "view").Logger(),
		refresh: DefaultRefresh,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name implements engine.Module
func (v *View) Name() string { return ModuleName }

// OnCreate implements engine.Module
func (v *View) OnCreate(_ context.Context, s *engine.Scheduler, _ ...any) error {
	v.sched = s
	v.Render()
	return nil
}

// OnUpdate implements engine.Module
func (v *View) OnUpdate(dt time.Duration) error {
	v.drain()
	if v.sched == nil || !v.sched.IsInitialized() {
		return nil
	}

	v.since += dt
	if v.since < v.refresh {
		return nil
	}
	v.since = 0
	v.Render()
	return nil
}

// OnDestroy implements engine.Module
func (v *View) OnDestroy() {
	v.screen.Clear()
	v.screen.Show()
}

// Frames returns how many times the dashboard was drawn
func (v *View) Frames() uint64 { return v.frames }

func (v *View) drain() {
	if v.events == nil {
		return
	}
	for {
		select {
		case ev := <-v.events:
			v.Handle(ev)
		default:
			return
		}
	}
}

// Handle applies one input event; call it on the tick thread
func (v *View) Handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
		v.since = v.refresh
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC,
			ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			if v.quit != nil {
				v.logger.Info().Msg("quit requested")
				v.quit()
			}
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'p':
			v.togglePause()
		}
	}
}

func (v *View) togglePause() {
	if v.clock == nil {
		return
	}
	if v.clock.IsPaused() {
		v.clock.Resume()
		v.logger.Info().Msg("resumed")
	} else {
		v.clock.Pause()
		v.logger.Info().Msg("paused")
	}
	v.Render()
}

// Render draws the dashboard and shows it
func (v *View) Render() {
	w, h := v.screen.Size()
	r := Region{Screen: v.screen, W: w, H: h}
	r.Fill(tcell.StyleDefault)

	snap := v.sched.Status().Snapshot()

	title := "tickflow"
	if v.clock != nil && v.clock.IsPaused() {
		title += " [paused]"
	}
	r.Text(1, 0, title, styleTitle)
	r.TextRight(0, fmt.Sprintf("ticks %d ", snap.Ints[status.EngineTicks]), styleKey)

	body := r.Sub(1, 2, w-2, h-2)
	row := 0
	body.KeyValue(row, keyWidth, "procedure", v.procedureLine(snap), styleKey, styleValue, ':')
	row++
	body.KeyValue(row, keyWidth, "tasks", fmt.Sprint(snap.Ints[status.EngineTasks]), styleKey, styleValue, ':')
	row++
	v.assetLine(body, row, snap)
	row += 2

	body.Text(0, row, "modules", styleTitle)
	row++
	for _, name := range v.sched.Order() {
		priority, _ := v.sched.Priority(name)
		body.KeyValue(row, keyWidth, fmt.Sprint(priority), name, styleKey, styleValue, ' ')
		row++
	}

	v.screen.Show()
	v.frames++
}

func (v *View) procedureLine(snap status.Snapshot) string {
	current := snap.Strings[status.ProcedureCurrent]
	if current == "" {
		return "-"
	}
	line := fmt.Sprintf("%s  (%d transitions)", current, snap.Ints[status.FSMTransitions])
	if !v.sched.Contains(procedure.ModuleName) {
		return line
	}
	pm, ok := engine.Lookup[*procedure.Manager](v.sched, procedure.ModuleName)
	if !ok {
		return line
	}
	if elapsed, err := pm.CurrentElapsed(); err == nil {
		line = fmt.Sprintf("%s  %s", line, elapsed.Truncate(100*time.Millisecond))
	}
	return line
}

func (v *View) assetLine(r Region, row int, snap status.Snapshot) {
	pending := snap.Ints[status.AssetPending]
	progress := snap.Floats[status.AssetProgress]

	r.KeyValue(row, keyWidth, "assets", "", styleKey, styleValue, ':')
	const barW = 20
	r.Progress(keyWidth+2, row, barW, progress, styleBar)

	label := fmt.Sprintf(" %3.0f%%  %d pending", progress*100, pending)
	style := styleValue
	if !snap.Bools[status.AssetReady] {
		label += "  not ready"
		style = styleError
	}
	r.Text(keyWidth+2+barW, row, label, style)
}
