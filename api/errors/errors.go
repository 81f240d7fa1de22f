/*
Copyright (c) 2025 Diagrid Inc.
Licensed under the MIT License.
*/

package errors

import (
	"errors"
	"fmt"
)

// InvalidTimeSpec is an error type that indicates a time specification could
// not be classified or parsed.
type InvalidTimeSpec struct {
	err string
}

func (i InvalidTimeSpec) Error() string {
	return i.err
}

func NewInvalidTimeSpec(spec any, reason error) InvalidTimeSpec {
	if reason == nil {
		return InvalidTimeSpec{err: fmt.Sprintf("invalid time specification: '%v'", spec)}
	}
	return InvalidTimeSpec{err: fmt.Sprintf("invalid time specification '%v': %s", spec, reason)}
}

func IsInvalidTimeSpec(err error) bool {
	var target InvalidTimeSpec
	return errors.As(err, &target)
}

// InvalidInstant is an error type that indicates a nested iterator produced a
// malformed instant.
type InvalidInstant struct {
	Index int
}

func (i InvalidInstant) Error() string {
	return fmt.Sprintf("iterator at index %d returned an invalid instant", i.Index)
}

func NewInvalidInstant(index int) InvalidInstant {
	return InvalidInstant{Index: index}
}

func IsInvalidInstant(err error) bool {
	var target InvalidInstant
	return errors.As(err, &target)
}

// ExclusionOverflow is an error type that indicates too many consecutive
// instants were excluded, typically because the excluded times match every
// included time.
type ExclusionOverflow struct {
	count int
}

func (e ExclusionOverflow) Error() string {
	return fmt.Sprintf("exceeded %d consecutive excluded instants", e.count)
}

func NewExclusionOverflow(count int) ExclusionOverflow {
	return ExclusionOverflow{count: count}
}

func IsExclusionOverflow(err error) bool {
	var target ExclusionOverflow
	return errors.As(err, &target)
}

// ScheduleAlreadyExists is an error type that indicates a schedule with the
// same name is already registered.
type ScheduleAlreadyExists struct {
	err string
}

func (s ScheduleAlreadyExists) Error() string {
	return s.err
}

func NewScheduleAlreadyExists(name string) ScheduleAlreadyExists {
	return ScheduleAlreadyExists{err: fmt.Sprintf("schedule already exists: '%s'", name)}
}

func IsScheduleAlreadyExists(err error) bool {
	var target ScheduleAlreadyExists
	return errors.As(err, &target)
}

// ScheduleNotFound is an error type that indicates no schedule is registered
// under the given name.
type ScheduleNotFound struct {
	err string
}

func (s ScheduleNotFound) Error() string {
	return s.err
}

func NewScheduleNotFound(name string) ScheduleNotFound {
	return ScheduleNotFound{err: fmt.Sprintf("schedule not found: '%s'", name)}
}

func IsScheduleNotFound(err error) bool {
	var target ScheduleNotFound
	return errors.As(err, &target)
}

// ErrAlreadyStarted is returned when starting a schedule which is running or was
// stopped.
var ErrAlreadyStarted = errors.New("schedule already started")

func IsAlreadyStarted(err error) bool {
	return errors.Is(err, ErrAlreadyStarted)
}

// ErrStopped is returned when starting a schedule which was stopped. A
// stopped schedule cannot be restarted.
var ErrStopped = errors.New("schedule stopped")

func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}
