// Package pbctl implements the pbctl command line tool: it generates squad
// sheets, computes them offline, formats paces and load-tests a running
// pbspread server.
package pbctl

import (
	"time"

	"github.com/okian/pbspread/internal/domain/catalog"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL  string           // Base URL of the service
	Sheets   int              // Number of sheets to generate and upload
	Athletes int              // Athletes per sheet
	Event    catalog.EventKey // Event whose leaderboard is verified
	TopN     int              // Leaderboard entries to fetch
	Workers  int              // Concurrent uploaders
	Timeout  time.Duration    // HTTP request timeout
	Settle   time.Duration    // How long to wait for the last sheet to publish
	Verbose  bool
}

// Entry is a leaderboard entry as served by the API.
type Entry struct {
	Rank      int      `json:"rank"`
	AthleteID int      `json:"athlete_id"`
	Athlete   string   `json:"athlete"`
	Initials  string   `json:"initials"`
	Pace      string   `json:"pace"`
	Seconds   *float64 `json:"seconds"`
	Power     *float64 `json:"power"`
}

// Leaderboard is the API leaderboard response.
type Leaderboard struct {
	Event   string  `json:"event"`
	Seq     uint64  `json:"seq"`
	Entries []Entry `json:"entries"`
}

// AckResponse is the response to a sheet upload.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	JobID     string `json:"job_id"`
	Seq       uint64 `json:"seq"`
	Rows      int    `json:"rows"`
}

// Stats holds load run statistics.
type Stats struct {
	SheetsGenerated    int
	SheetsSubmitted    int
	SheetsAccepted     int
	SheetsDuplicate    int
	SheetsRejected     int // 429 backpressure
	SheetsFailed       int
	LastSeq            uint64
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
