/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package rhythm

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dapr/kit/cron"
	"github.com/hashicorp/cronexpr"
)

// The Schedule describes a cron duty cycle.
type Schedule interface {
	// Return the next activation time, later than the given time, in the
	// location of the given time. Returns the zero time if the schedule never
	// activates again.
	Next(time.Time) time.Time
}

// standardParser accepts the five standard fields, an optional leading
// seconds field and the "@daily" style descriptors.
var standardParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// extendedToken matches the day modifiers only understood by the extended
// evaluator: L, LW, 15W, 5L, 6#3.
var extendedToken = regexp.MustCompile(`(^|[\s,])(LW?|\d+[LW]|\d+#\d+)($|[\s,])`)

// ParseCron parses a cron expression. Standard expressions are evaluated by
// the dapr cron parser, expressions using a year field or the L, W and #
// modifiers are evaluated by cronexpr.
func ParseCron(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if len(expr) == 0 {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}

	if isExtended(expr) {
		exp, err := cronexpr.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		return exp, nil
	}

	sched, err := standardParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	return sched, nil
}

func isExtended(expr string) bool {
	if strings.HasPrefix(expr, "@") {
		return false
	}

	fields := strings.Fields(expr)
	if len(fields) > 0 && strings.Contains(fields[0], "=") {
		// CRON_TZ= and TZ= prefixes are only known to the standard parser.
		return false
	}

	return len(fields) == 7 || extendedToken.MatchString(expr)
}
