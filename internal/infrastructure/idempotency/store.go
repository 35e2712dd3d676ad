// Package idempotency replays the response of a mutating request sent twice
// with the same X-Idempotency-Key.
package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
)

// Status is the lifecycle of a key.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Replay is a cached HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists idempotency keys.
//
// Acquire returns (nil, nil) when the caller now owns the key, a Replay when
// the operation already finished, or an AppError when the key is in flight or
// was used for a different request.
type Store interface {
	Acquire(ctx context.Context, key, actorID, operation, requestHash string) (*Replay, error)
	Complete(ctx context.Context, key string, statusCode int, contentType string, response any) error
	Fail(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

// EncodeResponse marshals a response body. A marshalling failure degrades to
// a minimal error document so the key still ends in a terminal state.
func EncodeResponse(response any) []byte {
	if response == nil {
		return nil
	}
	if b, ok := response.([]byte); ok {
		return b
	}
	b, err := json.Marshal(response)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return b
}

// NormalizeReplay fills defaults for records stored without metadata.
func NormalizeReplay(r *Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" {
		r.ContentType = "application/json"
	}
	return r
}
