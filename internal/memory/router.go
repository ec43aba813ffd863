package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Router dispatches memory operations to the short-term or long-term tier
// and composes cross-tier reads.
type Router struct {
	short  *ShortTermStore
	long   LongTermStore
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// NewRouter creates a memory router over the two tiers.
func NewRouter(short *ShortTermStore, long LongTermStore, opts ...Option) *Router {
	r := &Router{
		short:  short,
		long:   long,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store writes a record into the chosen scope. Records without a timestamp
// are stamped at write time. In the long scope, appendOnly=false together
// with a record ID replaces any existing records carrying that ID: a full
// overwrite, not a field merge.
func (r *Router) Store(ctx context.Context, rec Record, scope Scope, appendOnly bool) error {
	now := r.now().UTC()
	if rec.Timestamp == "" {
		rec.Timestamp = now.Format(time.RFC3339)
	}

	switch scope {
	case ScopeShort:
		r.short.Put(rec, now)
		return nil
	case ScopeLong:
		if !appendOnly && rec.ID != "" {
			return r.long.ReplaceByID(ctx, rec)
		}
		return r.long.Append(ctx, rec)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
}

// Retrieve returns all records in a scope whose fields exact-match the
// filters. An empty filter returns everything in that scope.
func (r *Router) Retrieve(ctx context.Context, scope Scope, filters Filters) ([]Record, error) {
	switch scope {
	case ScopeShort:
		return r.short.Query(filters), nil
	case ScopeLong:
		return r.long.Query(ctx, filters)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
}

// CaseHistory merges both tiers for one case, newest first, truncated to
// limit. Records with a missing timestamp compare as the empty string and
// land at the end rather than being dropped.
func (r *Router) CaseHistory(ctx context.Context, caseID string, limit int) ([]Record, error) {
	filters := Filters{"case_id": caseID}

	merged := r.short.Query(filters)
	longRecs, err := r.long.Query(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("case history for %s: %w", caseID, err)
	}
	merged = append(merged, longRecs...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// RecentCaseEvents is the event-feed read over a case: the same composed
// merge as CaseHistory.
func (r *Router) RecentCaseEvents(ctx context.Context, caseID string, limit int) ([]Record, error) {
	return r.CaseHistory(ctx, caseID, limit)
}

// RecentEvents returns long-term records of the given type written within
// the past interval. Records whose timestamp does not parse are skipped,
// with a warning.
func (r *Router) RecentEvents(ctx context.Context, recordType string, within time.Duration) ([]Record, error) {
	recs, err := r.long.Query(ctx, Filters{"type": recordType})
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}

	cutoff := r.now().UTC().Add(-within)
	var out []Record
	for _, rec := range recs {
		ts, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			r.logger.Warn("skipping record with unparsable timestamp",
				"record_id", rec.ID,
				"timestamp", rec.Timestamp)
			continue
		}
		if !ts.Before(cutoff) {
			out = append(out, rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out, nil
}
