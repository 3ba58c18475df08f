package domain

import "time"

// LogEvent is one logsNotification for the watched account.
// Produced by the event source and consumed once by trigger evaluation.
type LogEvent struct {
	Signature  string    // transaction signature (base58), may be empty
	Slot       int64     // context slot, 0 when absent
	Logs       []string  // log lines in program order
	Failed     bool      // transaction reported a non-null err
	ReceivedAt time.Time // local receive time
}

// Trigger is a log event that entered the trade pipeline.
type Trigger struct {
	ID    string // uuid, unique per trigger
	Event LogEvent
	Mint  string // resolved asset mint (base58)
}
