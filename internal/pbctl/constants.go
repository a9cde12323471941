package pbctl

import "time"

// Defaults for the load command.
const (
	DefaultBaseURL  = "http://localhost:9090"
	DefaultSheets   = 20
	DefaultAthletes = 30
	DefaultTopN     = 10
	DefaultTimeout  = 10 * time.Second
	DefaultSettle   = 30 * time.Second
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	pollInterval            = 50 * time.Millisecond
)

// Upload outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)
