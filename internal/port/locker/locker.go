package locker

import "context"

// AdvisoryLocker serialises benchmark runs. The Postgres implementation uses
// session advisory locks, so WithLock must lock and unlock on the same
// connection.
type AdvisoryLocker interface {
	WithLock(ctx context.Context, key int64, fn func(ctx context.Context) error) error
}
