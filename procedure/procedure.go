package procedure

import "github.com/lixenwraith/tickflow/engine/fsm"

// Procedure is one phase of the application flow: startup, login, gameplay
// Procedures drive transitions themselves by calling ChangeState on the machine
// passed to their hooks
type Procedure = fsm.State[*Manager]

// Machine is the state machine hosting procedures
type Machine = fsm.Machine[*Manager]

// Base supplies no-op hooks; embed it and override what the phase needs
type Base struct {
	fsm.BaseState[*Manager]
}
