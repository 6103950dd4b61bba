// Package terminal hosts the runtime dashboard on a tcell screen.
//
// Service owns the screen lifecycle and forwards input events to a channel.
// View is a scheduler module that drains those events on the tick thread and
// redraws the dashboard from scheduler state and status metrics.
package terminal
