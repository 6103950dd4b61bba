package main

import (
	"context"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/lixenwraith/tickflow/asset"
	"github.com/lixenwraith/tickflow/engine"
	"github.com/lixenwraith/tickflow/engine/fsm"
	"github.com/lixenwraith/tickflow/procedure"
	"github.com/lixenwraith/tickflow/status"
)

const (
	procBoot     fsm.StateID = "boot"
	procLogin    fsm.StateID = "login"
	procGameplay fsm.StateID = "gameplay"
)

const (
	// splash is the minimum time spent in boot
	splash = 500 * time.Millisecond
	// authDelay stands in for a login round trip
	authDelay = time.Second
)

// player plays decoded sounds; audio.Engine in the host
type player interface {
	Play(*asset.Sound) bool
}

// session carries what one procedure hands to the next
type session struct {
	jingle *asset.Sound
}

func demoProcedures(logger zerolog.Logger, out player) []any {
	sess := &session{}
	return []any{
		&bootProcedure{logger: logger},
		&loginProcedure{logger: logger, session: sess},
		&gameplayProcedure{logger: logger, session: sess, out: out},
	}
}

func bootstrapOf(m *procedure.Machine) (*asset.Bootstrap, bool) {
	s := m.Owner().Scheduler()
	if !s.Contains(asset.ModuleName) {
		return nil, false
	}
	return engine.Lookup[*asset.Bootstrap](s, asset.ModuleName)
}

// bootProcedure waits for the asset package and the splash time
type bootProcedure struct {
	procedure.Base
	logger zerolog.Logger
}

func (p *bootProcedure) ID() fsm.StateID { return procBoot }

func (p *bootProcedure) OnUpdate(m *procedure.Machine, _ time.Duration) error {
	if m.CurrentElapsed() < splash {
		return nil
	}
	b, ok := bootstrapOf(m)
	if ok && !b.Done() {
		return nil
	}
	if ok && b.Err() != nil {
		p.logger.Warn().Err(b.Err()).Msg("continuing without assets")
	}
	return m.ChangeState(procLogin)
}

// loginProcedure preloads the first sound of the package while a fake
// authentication task runs; both must finish before gameplay
type loginProcedure struct {
	procedure.Base
	logger  zerolog.Logger
	session *session

	authed bool
	sound  *asset.Handle
}

func (p *loginProcedure) ID() fsm.StateID { return procLogin }

func (p *loginProcedure) OnEnter(m *procedure.Machine) {
	p.authed = false
	p.sound = nil

	if b, ok := bootstrapOf(m); ok && b.Ready() {
		p.preload(b)
	}

	_, err := m.Owner().Scheduler().StartTask(m.Context(), "login.auth", engine.Sequence(
		engine.WaitFor(authDelay),
		engine.Do(func(context.Context) error {
			p.authed = true
			return nil
		}),
	))
	if err != nil {
		p.logger.Error().Err(err).Msg("auth task not started")
		p.authed = true
	}
}

func (p *loginProcedure) preload(b *asset.Bootstrap) {
	var first string
	for _, f := range b.Package().Files {
		if path.Ext(f) == ".wav" {
			first = f
			break
		}
	}
	if first == "" {
		return
	}
	sounds, err := b.Sounds()
	if err != nil {
		return
	}
	p.sound = sounds.LoadAsync(first, func(h *asset.Handle) {
		if h.Err() != nil {
			p.logger.Warn().Err(h.Err()).Str("path", h.Path()).Msg("sound preload failed")
			return
		}
		snd := h.Asset().(*asset.Sound)
		p.session.jingle = snd
		p.logger.Info().Str("path", h.Path()).Dur("duration", snd.Duration()).Msg("sound preloaded")
	})
}

func (p *loginProcedure) OnUpdate(m *procedure.Machine, _ time.Duration) error {
	if !p.authed || (p.sound != nil && !p.sound.IsDone()) {
		return nil
	}
	return m.ChangeState(procGameplay)
}

// gameplayProcedure plays the preloaded jingle and runs until the host quits
type gameplayProcedure struct {
	procedure.Base
	logger  zerolog.Logger
	session *session
	out     player
}

func (p *gameplayProcedure) ID() fsm.StateID { return procGameplay }

func (p *gameplayProcedure) OnEnter(m *procedure.Machine) {
	ticks := m.Owner().Scheduler().Status().Ints.Get(status.EngineTicks).Load()
	p.logger.Info().Int64("ticks", ticks).Msg("gameplay started")

	if p.out != nil && p.session.jingle != nil && !p.out.Play(p.session.jingle) {
		p.logger.Debug().Msg("jingle not played, audio muted or unavailable")
	}
}
