// SPDX-License-Identifier: MIT

package engine

import (
	"errors"
	"fmt"
)

// ErrCheckInProgress is returned by ManualCheck when a check pipeline is
// already running; callers get it immediately instead of queueing.
var ErrCheckInProgress = errors.New("check already in progress")

// ErrTornDown is returned once the engine has been closed.
var ErrTornDown = errors.New("engine torn down")

// FailureKind classifies a non-fatal pipeline failure surfaced to the view
// layer. No failure in this subsystem is fatal: the displayed image stays
// usable even when captions, metadata or smooth transitions fail.
type FailureKind string

const (
	FailureProbe      FailureKind = "probe"
	FailureExtraction FailureKind = "extraction"
	FailurePreload    FailureKind = "preload"
	FailureTemplate   FailureKind = "template"
)

// Failure is the typed error delivered to the error callback.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }
