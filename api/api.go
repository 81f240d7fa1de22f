/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package api

import (
	"context"
	"time"

	"github.com/diagridio/go-rhythm/rhythm"
)

// Iterator is a seekable, forward only source of instants.
type Iterator interface {
	// Next returns the next instant of the sequence, strictly after the
	// previously returned one. If seek is later than the current position, the
	// sequence is repositioned and the returned instant is the first one
	// strictly after seek. A nil instant with a nil error means the sequence is
	// exhausted, and every following call returns nil.
	// An error is only returned when a malformed instant was produced by a
	// nested iterator.
	Next(seek *time.Time) (*time.Time, error)
}

// Kind is the kind of a TimeSpec.
type Kind uint8

const (
	// KindFixed is a single point in time.
	KindFixed Kind = iota + 1

	// KindInterval is a calendar duration repeated from the start date.
	KindInterval

	// KindCron is a cron expression.
	KindCron
)

func (k Kind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindInterval:
		return "interval"
	case KindCron:
		return "cron"
	default:
		return "unknown"
	}
}

// TimeSpec is a single classified time specification. Only the field
// matching Kind is set.
type TimeSpec struct {
	Kind     Kind
	Instant  time.Time
	Interval rhythm.Duration
	Cron     string
}

// Fixed returns a TimeSpec for a single point in time.
func Fixed(t time.Time) TimeSpec {
	return TimeSpec{Kind: KindFixed, Instant: t}
}

// Interval returns a TimeSpec repeating every d.
func Interval(d rhythm.Duration) TimeSpec {
	return TimeSpec{Kind: KindInterval, Interval: d}
}

// Cron returns a TimeSpec for the given cron expression.
func Cron(expr string) TimeSpec {
	return TimeSpec{Kind: KindCron, Cron: expr}
}

func (t TimeSpec) String() string {
	switch t.Kind {
	case KindFixed:
		return t.Instant.Format(time.RFC3339Nano)
	case KindInterval:
		return t.Interval.String()
	case KindCron:
		return t.Cron
	default:
		return "<invalid>"
	}
}

// IteratorOptions describes the instants produced by an Iterator.
type IteratorOptions struct {
	// Times are the time specifications to merge. Items are either TimeSpec
	// values or raw values which are classified: time.Time, RFC 3339 strings,
	// cron expressions, ISO 8601 duration strings, rhythm.Duration,
	// time.Duration, milliseconds, or duration field maps.
	Times []any

	// ExcludedTimes are removed from the merged sequence. Same forms as
	// Times.
	ExcludedTimes []any

	// StartDate is the instant interval and cron sequences start from.
	// Defaults to now.
	StartDate *time.Time

	// EndDate bounds interval and cron sequences. Fixed instants are not
	// bounded.
	EndDate *time.Time

	// Limit is the maximum number of instants to produce. Nil is unbounded.
	Limit *uint32

	// RoundInterval truncates the interval anchor to the coarsest calendar
	// unit not longer than the interval, e.g. the start of the month for
	// "P1M".
	RoundInterval bool

	// Location, if given, is the location used for calendar operations. By
	// default the location of StartDate is used.
	Location *time.Location
}

// ScheduleOptions describes a named schedule of the cron instance.
type ScheduleOptions struct {
	IteratorOptions

	// Metadata is passed back to the trigger function.
	Metadata map[string]string
}

// TriggerRequest is the payload of a trigger.
type TriggerRequest struct {
	// Name is the name of the schedule.
	Name string

	// ID uniquely identifies this trigger.
	ID string

	// Instant is the scheduled instant which fired.
	Instant time.Time

	// Metadata is the metadata of the schedule.
	Metadata map[string]string
}

// TriggerFunction is the type of the function that is called when a schedule
// is triggered.
type TriggerFunction func(context.Context, *TriggerRequest)

// EventType is the type of a lifecycle event.
type EventType uint8

const (
	EventStarted EventType = iota + 1
	EventStopped
	EventScheduled
	EventTriggered
	EventExhausted
)

func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventScheduled:
		return "scheduled"
	case EventTriggered:
		return "triggered"
	case EventExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Event is a lifecycle event of a schedule.
type Event struct {
	Type EventType

	// Name is the name of the schedule, empty for standalone schedules.
	Name string

	// Instant is set for Scheduled and Triggered events.
	Instant *time.Time
}

// API is the interface for managing schedules of the cron instance.
type API interface {
	// Add adds a named schedule. Returns an error if a schedule with the same
	// name already exists.
	Add(ctx context.Context, name string, opts *ScheduleOptions) error

	// Delete removes a schedule, cancelling its pending trigger.
	Delete(ctx context.Context, name string) error

	// List returns the names of all schedules, sorted.
	List() []string

	// NextTrigger returns the next instant the schedule will trigger at, nil
	// if the schedule is exhausted or not yet running.
	NextTrigger(name string) (*time.Time, error)
}

// Interface is a cron interface. It triggers named schedules at the instants
// produced by their iterators.
type Interface interface {
	// Run is a blocking function that runs the cron instance. It will return an
	// error if the instance is already running.
	// Returns when the given context is cancelled, after doing all cleanup.
	Run(ctx context.Context) error

	// API implements the client API for the cron instance.
	API
}
