package service

import "context"

// Service is a host-level resource that lives outside the tick loop:
// trace exporters, log sinks, the terminal screen, the tick driver itself
//
// Lifecycle:
//  1. Construction
//  2. Init(ctx) - acquire resources, in dependency order
//  3. Start() - launch goroutines, after every service initialized
//  4. Stop() - release, in reverse start order
type Service interface {
	// Name returns the unique identifier for this service
	Name() string

	// Dependencies returns names of services that must Init before this one
	Dependencies() []string

	// Init acquires resources; ctx bounds the initialization only
	Init(ctx context.Context) error

	// Start begins service operation
	Start() error

	// Stop halts the service; must be idempotent
	Stop() error
}
