/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package cli

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dapr/kit/ptr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/diagridio/go-rhythm/api"
	"github.com/diagridio/go-rhythm/cron"
)

func newNextCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print the upcoming instants of a schedule",
		Example: `  rhythm next --times "0 9 * * MON-FRI" --times 2024-12-25T09:00:00Z --exclude 2024-12-24T09:00:00+01:00
  rhythm next --times P1M --round --start 2024-01-15T00:00:00Z --count 3
  rhythm next -c schedules.yaml --schedule reports/daily`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := nextOptions(cmd, v)
			if err != nil {
				return err
			}

			iter, err := cron.NewIterator(opts)
			if err != nil {
				return err
			}

			count := v.GetInt("count")
			if count < 1 {
				return errors.New("count must be positive")
			}

			var seek *time.Time
			if after := v.GetString("after"); len(after) > 0 {
				t, err := time.Parse(time.RFC3339, after)
				if err != nil {
					return fmt.Errorf("invalid after time: %w", err)
				}
				seek = &t
			}

			for range count {
				next, err := iter.Next(seek)
				if err != nil {
					return err
				}
				if next == nil {
					break
				}
				seek = nil
				fmt.Fprintln(cmd.OutOrStdout(), next.Format(time.RFC3339Nano))
			}

			return nil
		},
	}

	cmd.Flags().StringArray("times", nil, "Time to merge, repeatable: RFC 3339 instant, cron expression, ISO 8601 duration or milliseconds")
	cmd.Flags().StringArray("exclude", nil, "Time to exclude, repeatable, same forms as --times")
	cmd.Flags().String("start", "", "RFC 3339 start of interval and cron times, defaults to now")
	cmd.Flags().String("end", "", "RFC 3339 end of interval and cron times")
	cmd.Flags().String("after", "", "Only print instants after this RFC 3339 time")
	cmd.Flags().Int64("limit", -1, "Maximum number of instants of the schedule, negative is unbounded")
	cmd.Flags().Int("count", 10, "Number of instants to print")
	cmd.Flags().Bool("round", false, "Round intervals to the start of their calendar unit")
	cmd.Flags().String("location", "", "IANA location of calendar operations")
	cmd.Flags().String("schedule", "", "Name of a schedule of the --config document")

	// Repeatable flags are read from the environment one value per line, as
	// cron expressions contain commas and spaces.
	for _, name := range []string{"times", "exclude"} {
		_ = v.BindEnv(envKey(name), "RHYTHM_"+strings.ToUpper(name))
	}

	return cmd
}

func envKey(name string) string {
	return "env-" + name
}

// stringArray returns the values of a repeatable flag, or of its
// environment variable if the flag is not set.
func stringArray(cmd *cobra.Command, v *viper.Viper, name string) ([]string, error) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return cmd.Flags().GetStringArray(name)
	}

	var values []string
	for _, line := range strings.Split(v.GetString(envKey(name)), "\n") {
		if line = strings.TrimSpace(line); len(line) > 0 {
			values = append(values, line)
		}
	}
	return values, nil
}

// nextOptions returns the iterator options of the named schedule of the
// config document, or the ones given by flags.
func nextOptions(cmd *cobra.Command, v *viper.Viper) (*api.IteratorOptions, error) {
	if name := v.GetString("schedule"); len(name) > 0 {
		path := v.GetString("config")
		if len(path) == 0 {
			return nil, errors.New("--schedule requires --config")
		}

		doc, err := LoadDocument(path)
		if err != nil {
			return nil, err
		}

		s, ok := doc.Find(name)
		if !ok {
			return nil, fmt.Errorf("schedule %q not found in %s", name, path)
		}

		opts, err := s.Options()
		if err != nil {
			return nil, err
		}

		return &opts.IteratorOptions, nil
	}

	times, err := stringArray(cmd, v, "times")
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, errors.New("at least one of --times or --schedule is required")
	}

	excluded, err := stringArray(cmd, v, "exclude")
	if err != nil {
		return nil, err
	}

	opts := &api.IteratorOptions{
		Times:         toAny(times),
		ExcludedTimes: toAny(excluded),
		RoundInterval: v.GetBool("round"),
	}

	if opts.StartDate, err = parseTime(v.GetString("start")); err != nil {
		return nil, fmt.Errorf("invalid start: %w", err)
	}
	if opts.EndDate, err = parseTime(v.GetString("end")); err != nil {
		return nil, fmt.Errorf("invalid end: %w", err)
	}

	if limit := v.GetInt64("limit"); limit >= 0 {
		if limit > math.MaxUint32 {
			return nil, fmt.Errorf("limit %d is larger than %d", limit, uint32(math.MaxUint32))
		}
		opts.Limit = ptr.Of(uint32(limit))
	}

	if loc := v.GetString("location"); len(loc) > 0 {
		if opts.Location, err = time.LoadLocation(loc); err != nil {
			return nil, err
		}
	}

	return opts, nil
}

func parseTime(s string) (*time.Time, error) {
	if len(s) == 0 {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
