package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name    string
	deps    []string
	log     *[]string
	initErr error
}

func (f *fakeService) Name() string           { return f.name }
func (f *fakeService) Dependencies() []string { return f.deps }

func (f *fakeService) Init(context.Context) error {
	*f.log = append(*f.log, "init:"+f.name)
	return f.initErr
}

func (f *fakeService) Start() error {
	*f.log = append(*f.log, "start:"+f.name)
	return nil
}

func (f *fakeService) Stop() error {
	*f.log = append(*f.log, "stop:"+f.name)
	return nil
}

func TestHub_DependencyOrder(t *testing.T) {
	var log []string
	h := NewHub(zerolog.Nop())

	require.NoError(t, h.Register(&fakeService{name: "view", deps: []string{"runtime"}, log: &log}))
	require.NoError(t, h.Register(&fakeService{name: "runtime", deps: []string{"tracing"}, log: &log}))
	require.NoError(t, h.Register(&fakeService{name: "tracing", log: &log}))

	order, err := h.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"tracing", "runtime", "view"}, order)

	require.NoError(t, h.InitAll(context.Background()))
	require.NoError(t, h.StartAll())
	require.NoError(t, h.StopAll())

	assert.Equal(t, []string{
		"init:tracing", "init:runtime", "init:view",
		"start:tracing", "start:runtime", "start:view",
		"stop:view", "stop:runtime", "stop:tracing",
	}, log)
}

func TestHub_InitFailureRollsBack(t *testing.T) {
	var log []string
	h := NewHub(zerolog.Nop())
	boom := errors.New("boom")

	require.NoError(t, h.Register(&fakeService{name: "a", log: &log}))
	require.NoError(t, h.Register(&fakeService{name: "b", deps: []string{"a"}, log: &log, initErr: boom}))

	err := h.InitAll(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"init:a", "init:b", "stop:a"}, log)
}

func TestHub_RegistrationErrors(t *testing.T) {
	var log []string
	h := NewHub(zerolog.Nop())

	require.NoError(t, h.Register(&fakeService{name: "a", deps: []string{"missing"}, log: &log}))
	assert.Error(t, h.Register(&fakeService{name: "a", log: &log}))

	_, err := h.Order()
	assert.ErrorContains(t, err, "unregistered service: missing")
}

func TestHub_Cycle(t *testing.T) {
	var log []string
	h := NewHub(zerolog.Nop())
	require.NoError(t, h.Register(&fakeService{name: "a", deps: []string{"b"}, log: &log}))
	require.NoError(t, h.Register(&fakeService{name: "b", deps: []string{"a"}, log: &log}))

	assert.ErrorContains(t, h.InitAll(context.Background()), "circular dependency")
}

func TestHub_MustGet(t *testing.T) {
	var log []string
	h := NewHub(zerolog.Nop())
	svc := &fakeService{name: "a", log: &log}
	require.NoError(t, h.Register(svc))

	assert.Same(t, svc, MustGet[*fakeService](h, "a"))
	assert.Panics(t, func() { MustGet[*fakeService](h, "nope") })
	assert.Equal(t, []string{"a"}, h.Names())
}
