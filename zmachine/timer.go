package zmachine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// waitForTimedInput races a blocking read of a line of input against an
// optional v4+ timeout, using errgroup.WithContext to coordinate the two
// under a single cancellation rather than a bare select - grounded on
// jcorbin-gothird's errgroup.WithContext usage for racing a subprocess
// against a deadline. Only the input side is a goroutine; the timeout
// itself is context cancellation, so there is exactly one suspension point
// per tick. Per spec, the timer routine fires every T tenths for as long
// as the read keeps blocking, not just once, so the wait/interrupt cycle
// repeats until input arrives or a routine invocation asks to abandon.
func (z *ZMachine) waitForTimedInput(req InputRequest) (string, bool, error) {
	if req.TimeTenths == 0 || req.RoutinePack == 0 {
		return <-z.inputChannel, false, nil
	}

	tick := time.Duration(req.TimeTenths) * 100 * time.Millisecond

	for {
		ctx, cancel := context.WithTimeout(context.Background(), tick)
		eg, ctx := errgroup.WithContext(ctx)
		result := make(chan string, 1)

		eg.Go(func() error {
			select {
			case text := <-z.inputChannel:
				result <- text
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		err := eg.Wait()
		cancel()
		if err == nil {
			return <-result, false, nil
		}

		// This tick elapsed without input: run the story's interrupt
		// routine before deciding whether to abandon the read or keep
		// waiting for another tick.
		abandon, err := z.runInterruptRoutine(req.RoutinePack)
		if err != nil {
			return "", false, err
		}
		if abandon {
			return "", true, nil
		}
	}
}
