package repository

// Option applies a configuration option to the SnapshotStore.
type Option func(*SnapshotStore)

// WithMaxLeaderboardLimit caps the number of entries Leaderboard returns.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *SnapshotStore) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}
