package fsm

import (
	"errors"
	"reflect"
	"time"
)

// StateID is the discriminant that identifies a state inside a machine
// One instance per StateID may be registered per machine
type StateID string

// StateNone is the ID reported by an idle machine
const StateNone StateID = ""

// Contract violations; returned wrapped with machine context, test with errors.Is
var (
	ErrInvalidOwner     = errors.New("fsm owner is invalid")
	ErrEmptyStates      = errors.New("fsm states are invalid")
	ErrDuplicateState   = errors.New("fsm state already exists")
	ErrUnknownState     = errors.New("fsm state does not exist")
	ErrAlreadyRunning   = errors.New("fsm is running, can not start again")
	ErrNotRunning       = errors.New("fsm is not running")
	ErrDestroyed        = errors.New("fsm is destroyed")
	ErrInvalidDataName  = errors.New("fsm data name is invalid")
	ErrDuplicateMachine = errors.New("fsm already exists")
)

// Key identifies a machine by owner type and instance name
// Comparable, so it works directly as a map key
type Key struct {
	Owner string
	Name  string
}

// KeyOf builds the key for owner type T and a machine name
func KeyOf[T any](name string) Key {
	return Key{Owner: reflect.TypeFor[T]().String(), Name: name}
}

// String renders "owner" or "owner.name"
func (k Key) String() string {
	if k.Name == "" {
		return k.Owner
	}
	return k.Owner + "." + k.Name
}

// State is a behavior unit hosted by a Machine
// T is the owner type of the machine
type State[T any] interface {
	// ID returns the discriminant, unique per machine
	ID() StateID

	// OnInit runs once when the machine is created
	OnInit(m *Machine[T])

	// OnEnter runs when the state becomes active
	OnEnter(m *Machine[T])

	// OnUpdate runs every tick while active
	// A returned error aborts the update and propagates to the driver
	OnUpdate(m *Machine[T], elapsed time.Duration) error

	// OnLeave runs on deactivation; shutdown is true only during Clear
	OnLeave(m *Machine[T], shutdown bool)

	// OnDestroy runs once when the machine is cleared
	OnDestroy(m *Machine[T])
}

// BaseState provides no-op hooks; embed it and override what is needed
type BaseState[T any] struct{}

func (BaseState[T]) OnInit(*Machine[T])                        {}
func (BaseState[T]) OnEnter(*Machine[T])                       {}
func (BaseState[T]) OnUpdate(*Machine[T], time.Duration) error { return nil }
func (BaseState[T]) OnLeave(*Machine[T], bool)                 {}
func (BaseState[T]) OnDestroy(*Machine[T])                     {}
