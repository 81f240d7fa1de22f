/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dapr/kit/ptr"

	"github.com/diagridio/go-rhythm/api"
	"github.com/diagridio/go-rhythm/cron"
)

func main() {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		panic(err)
	}

	// Every weekday at 9:00 Paris time, plus the first day of every month,
	// skipping Christmas.
	iter, err := cron.NewIterator(&api.IteratorOptions{
		Times:         []any{"0 9 * * MON-FRI", "P1M"},
		ExcludedTimes: []any{"2024-12-25T09:00:00+01:00"},
		StartDate:     ptr.Of(time.Date(2024, 12, 20, 0, 0, 0, 0, paris)),
		Limit:         ptr.Of(uint32(8)),
		RoundInterval: true,
		Location:      paris,
	})
	if err != nil {
		panic(err)
	}

	for {
		next, err := iter.Next(nil)
		if err != nil {
			panic(err)
		}
		if next == nil {
			break
		}
		fmt.Println(next.Format(time.RFC1123Z))
	}

	c, err := cron.New(cron.Options{
		TriggerFn: func(_ context.Context, req *api.TriggerRequest) {
			// Do something with your trigger here.
			fmt.Printf("%s triggered at %s\n", req.Name, req.Instant.Format(time.RFC3339))
		},
	})
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Add(ctx, "every-second", &api.ScheduleOptions{
		IteratorOptions: api.IteratorOptions{
			Times: []any{"PT1S"},
			Limit: ptr.Of(uint32(3)),
		},
	}); err != nil {
		panic(err)
	}

	if err := c.Run(ctx); err != nil {
		panic(err)
	}
}
