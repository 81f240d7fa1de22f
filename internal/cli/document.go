/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dapr/kit/ptr"
	"gopkg.in/yaml.v3"

	"github.com/diagridio/go-rhythm/api"
)

// Document is a YAML file of named schedules.
type Document struct {
	Schedules []Schedule `yaml:"schedules"`
}

// Schedule is a named schedule of a Document. Times and excluded times
// accept every form of IteratorOptions.Times which YAML can express.
type Schedule struct {
	Name          string            `yaml:"name"`
	Times         []any             `yaml:"times"`
	ExcludedTimes []any             `yaml:"excludedTimes,omitempty"`
	Start         *time.Time        `yaml:"start,omitempty"`
	End           *time.Time        `yaml:"end,omitempty"`
	Limit         *uint32           `yaml:"limit,omitempty"`
	RoundInterval bool              `yaml:"roundInterval,omitempty"`
	Location      string            `yaml:"location,omitempty"`
	Metadata      map[string]string `yaml:"metadata,omitempty"`
}

// LoadDocument reads a Document from the file at path.
func LoadDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := DecodeDocument(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return doc, nil
}

func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("document is empty")
		}
		return nil, err
	}

	seen := make(map[string]bool, len(doc.Schedules))
	for i, s := range doc.Schedules {
		if len(s.Name) == 0 {
			return nil, fmt.Errorf("schedule %d has no name", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate schedule %q", s.Name)
		}
		seen[s.Name] = true
	}

	return &doc, nil
}

// Find returns the schedule with the given name.
func (d *Document) Find(name string) (*Schedule, bool) {
	for i := range d.Schedules {
		if d.Schedules[i].Name == name {
			return &d.Schedules[i], true
		}
	}
	return nil, false
}

// Options returns the schedule options of s.
func (s *Schedule) Options() (*api.ScheduleOptions, error) {
	opts := &api.ScheduleOptions{
		IteratorOptions: api.IteratorOptions{
			Times:         s.Times,
			ExcludedTimes: s.ExcludedTimes,
			StartDate:     s.Start,
			EndDate:       s.End,
			RoundInterval: s.RoundInterval,
		},
		Metadata: s.Metadata,
	}

	if s.Limit != nil {
		opts.Limit = ptr.Of(*s.Limit)
	}

	if len(s.Location) > 0 {
		loc, err := time.LoadLocation(s.Location)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", s.Name, err)
		}
		opts.Location = loc
	}

	return opts, nil
}
