package engine

import "time"

// clockFunc is injected by tests so duplicate-window ledgers, the rate
// limiter and session timers don't depend on wall-clock time.
type clockFunc func() time.Time

func realClock() time.Time { return time.Now() }
