/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/diagridio/go-rhythm/api"
)

// Options is a struct that contains options for the validator.
type Options struct {
	// NameSanitizer is a replacer that sanitizes schedule names before name
	// validation.
	NameSanitizer *strings.Replacer
}

// Validator validates registry request payloads.
type Validator struct {
	nameSanitizer *strings.Replacer
}

func New(opts Options) *Validator {
	nameSanitizer := opts.NameSanitizer
	if nameSanitizer == nil {
		nameSanitizer = strings.NewReplacer("_", "", ":", "", "-", "", " ", "")
	}
	return &Validator{
		nameSanitizer: nameSanitizer,
	}
}

// ScheduleName validates a schedule name. Names may be made of several
// "/" separated segments, each a DNS-1123 subdomain once sanitized.
func (v *Validator) ScheduleName(name string) error {
	if len(name) == 0 {
		return errors.New("schedule name cannot be empty")
	}

	sanitized := v.nameSanitizer.Replace(name)
	for _, segment := range strings.Split(strings.ToLower(sanitized), "/") {
		if errs := validation.IsDNS1123Subdomain(segment); len(errs) > 0 {
			return fmt.Errorf("schedule name is invalid %q: %s", name, strings.Join(errs, ", "))
		}
	}

	return nil
}

// ScheduleOptions validates the options of a schedule, before any time is
// classified.
func (v *Validator) ScheduleOptions(opts *api.ScheduleOptions) error {
	if opts == nil {
		return errors.New("schedule options cannot be nil")
	}

	if len(opts.Times) == 0 {
		return errors.New("schedule must have at least one time")
	}

	if opts.StartDate != nil && opts.EndDate != nil && opts.EndDate.Before(*opts.StartDate) {
		return fmt.Errorf("schedule end date %s is before start date %s",
			opts.EndDate.Format(time.RFC3339), opts.StartDate.Format(time.RFC3339))
	}

	for k := range opts.Metadata {
		if len(k) == 0 {
			return errors.New("schedule metadata keys cannot be empty")
		}
	}

	return nil
}
