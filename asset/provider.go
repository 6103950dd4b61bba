// Package asset loads runtime assets through providers driven by the
// scheduler, and bootstraps the default asset package by play mode.
package asset

// Provider loads assets by path relative to the package it serves
type Provider interface {
	// Load blocks until the asset is decoded
	Load(path string) (any, error)

	// LoadAsync starts a load that advances once per tick; onComplete runs
	// on the tick thread when the handle finishes, successfully or not.
	// A load cancelled with its provider's context fails the handle with the
	// context error and skips onComplete
	LoadAsync(path string, onComplete func(*Handle)) *Handle

	// Progress is the mean progress of the provider's in-flight loads
	Progress() float64
}
