package pbctl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/pkg/logger"
)

// ErrNotPublished is returned when the last accepted sheet never shows up
// on the leaderboard within the settle window.
var ErrNotPublished = errors.New("last accepted sheet was not published")

type upload struct {
	raw []byte
}

// Run generates sheets, uploads them concurrently, waits for the newest
// accepted sheet to be published and checks the served leaderboard
// against an offline compute of that sheet.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("pbctl")
	cat := catalog.Default()

	log.Info(ctx, "starting load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("sheets", config.Sheets),
		logger.Int("athletes", config.Athletes),
		logger.Int("workers", config.Workers),
		logger.String("event", config.Event.String()))

	client := newHTTPClient(config.BaseURL, config.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	sheets := make([]upload, 0, config.Sheets)
	for i := 0; i < config.Sheets; i++ {
		rows, err := GenerateSquad(ctx, cat, config.Athletes)
		if err != nil {
			return stats, fmt.Errorf("sheet generation failed: %w", err)
		}
		raw, err := encodeSquad(cat, rows)
		if err != nil {
			return stats, fmt.Errorf("sheet encoding failed: %w", err)
		}
		sheets = append(sheets, upload{raw: raw})
	}
	stats.SheetsGenerated = len(sheets)

	latest := submitSheets(ctx, config, client, sheets, stats)
	if latest == nil {
		return stats, fmt.Errorf("no sheet was accepted (rejected: %d, failed: %d)", stats.SheetsRejected, stats.SheetsFailed)
	}

	lb, err := awaitSeq(ctx, config, client, stats.LastSeq)
	if err != nil {
		return stats, err
	}
	stats.LeaderboardEntries = len(lb.Entries)

	if err := verifyLeaderboard(ctx, cat, config, latest, lb); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// submitSheets uploads sheets with a worker pool and returns the content
// of the accepted sheet with the highest sequence.
func submitSheets(ctx context.Context, config *Config, client *HTTPClient, sheets []upload, stats *Stats) []byte {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		latest []byte
	)
	ch := make(chan upload, config.Workers*WorkerChannelMultiplier)

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range ch {
				outcome, ack := client.UploadSheet(ctx, u.raw)
				mu.Lock()
				stats.SheetsSubmitted++
				switch outcome {
				case outcomeAccepted:
					stats.SheetsAccepted++
					if ack.Seq > stats.LastSeq {
						stats.LastSeq = ack.Seq
						latest = u.raw
					}
				case outcomeDuplicate:
					stats.SheetsDuplicate++
				case outcomeRejected:
					stats.SheetsRejected++
				default:
					stats.SheetsFailed++
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, s := range sheets {
			select {
			case <-ctx.Done():
				return
			case ch <- s:
			}
		}
	}()

	wg.Wait()
	return latest
}

// awaitSeq polls the leaderboard until it reflects seq.
func awaitSeq(ctx context.Context, config *Config, client *HTTPClient, seq uint64) (Leaderboard, error) {
	ctx, cancel := context.WithTimeout(ctx, config.Settle)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		lb, ok, err := client.Leaderboard(ctx, config.Event, config.TopN)
		if err != nil && ctx.Err() == nil {
			return lb, fmt.Errorf("leaderboard retrieval failed: %w", err)
		}
		if ok && lb.Seq >= seq {
			return lb, nil
		}
		select {
		case <-ctx.Done():
			return lb, fmt.Errorf("%w: seq %d", ErrNotPublished, seq)
		case <-ticker.C:
		}
	}
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var sheetsPerSecond float64
	if stats.Duration > 0 {
		sheetsPerSecond = float64(stats.SheetsSubmitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("sheetsGenerated", stats.SheetsGenerated),
		logger.Int("sheetsSubmitted", stats.SheetsSubmitted),
		logger.Int("sheetsAccepted", stats.SheetsAccepted),
		logger.Int("sheetsDuplicate", stats.SheetsDuplicate),
		logger.Int("sheetsRejected", stats.SheetsRejected),
		logger.Int("sheetsFailed", stats.SheetsFailed),
		logger.Int64("lastSeq", int64(stats.LastSeq)),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("sheetsPerSecond", sheetsPerSecond))
}
