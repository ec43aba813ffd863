// Package pagination implements opaque cursor pagination for case listings.
//
// A cursor encodes the (created_at, id) position of the last item on the
// previous page. Listings order newest-first with the case ID breaking
// ties, so a follow-up page contains items strictly after that position.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor marks a position in a created_at-descending, id-ascending listing.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode serializes the cursor to an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d|%s", c.CreatedAt.UnixNano(), c.ID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token produced by Encode. An empty token yields a zero
// cursor and no error.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, fmt.Errorf("invalid cursor format")
	}

	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	return Cursor{CreatedAt: time.Unix(0, nanos), ID: parts[1]}, nil
}

// Page is one page of results plus the token for the next one.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

// SkipPast drops items at or before the cursor position. A zero cursor
// returns items unchanged.
func SkipPast[T any](items []T, c Cursor, key func(T) Cursor) []T {
	if c.ID == "" {
		return items
	}
	for i, item := range items {
		k := key(item)
		if k.CreatedAt.Before(c.CreatedAt) || (k.CreatedAt.Equal(c.CreatedAt) && k.ID > c.ID) {
			return items[i:]
		}
	}
	return nil
}

// ComputePage truncates items to limit and derives the next cursor from
// the last item kept. Pass one more item than the limit so HasMore is
// accurate.
func ComputePage[T any](items []T, limit int, key func(T) Cursor) Page[T] {
	if limit <= 0 || len(items) <= limit {
		return Page[T]{Items: items}
	}

	kept := items[:limit]
	return Page[T]{
		Items:      kept,
		NextCursor: key(kept[limit-1]).Encode(),
		HasMore:    true,
	}
}
