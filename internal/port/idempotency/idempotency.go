package idempotency

import "context"

// Response is a stored HTTP outcome replayed for a repeated request.
// Operation is the method and route the key was first used on; Check fills
// it in.
type Response struct {
	Operation  string
	StatusCode int
	Body       []byte
}

// Store remembers the response to a request carrying an Idempotency-Key.
// [DIP] The transport middleware depends on this interface, not on Postgres.
type Store interface {
	// Check returns the stored response for key and whether one exists.
	Check(ctx context.Context, key string) (Response, bool, error)

	// Save records the response. The first save for a key wins.
	Save(ctx context.Context, key, operation string, resp Response) error
}
