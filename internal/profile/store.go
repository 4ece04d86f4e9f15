// Package profile persists per-user profile documents and runs the periodic
// synthesis job that rewrites them from recent conversation transcripts.
package profile

import (
	"context"
	"time"
)

// Document is one user's durable profile. The synthesizer overwrites it
// wholesale; it is never merged field by field.
type Document struct {
	Timestamp time.Time `json:"timestamp"`
	Analysis  string    `json:"analysis"`
	Username  string    `json:"username"`
}

// Store persists profile documents. Get returns (nil, nil) when no profile
// exists; absent is not an error.
type Store interface {
	Get(ctx context.Context, userKey string) (*Document, error)
	Put(ctx context.Context, userKey string, doc *Document) error
	Close() error
}
