// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the errors that cross the pipeline boundary.
//
// Why only two error types?
//
// A generation failure happens before anything is touched and a registration
// failure means the fragment could not be turned into a safe callable. Both are
// reported to the caller and both leave the registry untouched. Everything that
// goes wrong while a registered fragment runs is recovered in place and never
// surfaces here.
package particle

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is wrapped when a description lacks a required field.
	ErrMissingField = errors.New("missing required field")
	// ErrMalformedColor is wrapped when a color is not three integer channels.
	ErrMalformedColor = errors.New("malformed color")
)

// GenerationError reports a failed request to the external generator:
// transport failure, non-success response or an unusable payload.
type GenerationError struct {
	Name string
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("generation failed during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("generation of %q failed during %s: %v", e.Name, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error { return e.Err }

// RegistrationError reports that a description could not be turned into a
// runnable action. No registry entry is created and no id is consumed.
type RegistrationError struct {
	Name  string
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration of %q failed at %s: %v", e.Name, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RegistrationError) Unwrap() error { return e.Err }
