package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultReadCapabilityTTL is how long a read capability stays valid when the
// caller does not ask for something else.
const DefaultReadCapabilityTTL = 24 * time.Hour

// partSize is the chunk size used when streaming into a backend.
const partSize = 4 << 20

// Object describes a blob after it has been durably written.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// ObjectStore persists opaque byte streams and hands out time limited read
// capabilities for them.
type ObjectStore interface {
	// Put streams r into a new object named after suggestedName. The object is
	// either fully written or not visible at all.
	Put(ctx context.Context, r io.Reader, contentType, suggestedName string) (Object, error)

	// IssueReadCapability returns a URL that lets an unauthenticated client
	// read the object until ttl elapses.
	IssueReadCapability(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var (
	ErrStorageUnavailable = errors.New("object store unavailable")
	ErrWriteFailed        = errors.New("object write failed")
	ErrNotConfigured      = errors.New("object store not configured")
	ErrObjectNotFound     = errors.New("object not found in storage")
	ErrInvalidCapability  = errors.New("invalid read capability")
	ErrCapabilityExpired  = errors.New("read capability expired")
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeName replaces every character outside [a-zA-Z0-9.-] with '_'.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// NewObjectKey builds a collision free key that still carries the original
// file name for humans browsing the bucket.
func NewObjectKey(suggestedName string) string {
	name := SanitizeName(strings.TrimSpace(suggestedName))
	if name == "" {
		name = "upload"
	}
	return uuid.NewString() + "_" + name
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultReadCapabilityTTL
	}
	return ttl
}

// countingReader tracks how many bytes went through and stops early once the
// context is done so a cancelled request aborts the upload.
type countingReader struct {
	ctx context.Context
	r   io.Reader
	n   int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
