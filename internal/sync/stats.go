package sync

import "time"

// Stats is the run-statistics record handed to the notification sink
// after every run, success or failure. Counters are kept in-struct
// rather than recovered from log files afterwards.
type Stats struct {
	Start           time.Time
	End             time.Time
	Duration        time.Duration
	CodesProcessed  int
	ProductsUpdated int
	Errors          int
	Warnings        int
}

func (s *Stats) finish(now time.Time) {
	s.End = now
	s.Duration = s.End.Sub(s.Start)
}
