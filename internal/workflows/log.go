package workflows

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PolarWolf314/vaultkey/internal/audit"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// LogOptions configures the log workflow.
type LogOptions struct {
	// Limit is the maximum number of entries to return. 0 means no limit.
	Limit int

	// Reverse orders entries from most recent to oldest when true.
	Reverse bool

	// User filters entries by user email.
	User string

	// Operations filters entries by operation (comma-separated).
	Operations string

	// Vault filters entries by share id.
	Vault string

	// Since and Until bound entries by date (YYYY-MM-DD).
	Since string
	Until string
}

// LogResult contains the outcome of a log operation.
type LogResult struct {
	Entries []audit.Entry

	// Total is the number of entries before filtering.
	Total int
}

// Log reads and filters the workspace audit log. A missing log yields no
// entries.
//
// Returns ErrWorkspaceNotInitialized outside a workspace.
// Returns ErrInvalidRequest if a date is not in YYYY-MM-DD format.
func Log(ctx context.Context, opts LogOptions) (*LogResult, error) {
	if err := requireWorkspace(); err != nil {
		return nil, err
	}

	entries, err := audit.ReadEntries()
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	result := &LogResult{Total: len(entries)}

	if opts.User != "" {
		entries = filterEntries(entries, func(e audit.Entry) bool { return strings.EqualFold(e.User, opts.User) })
	}
	if opts.Vault != "" {
		entries = filterEntries(entries, func(e audit.Entry) bool { return e.ShareID == opts.Vault })
	}
	if opts.Operations != "" {
		var merged []audit.Entry
		for _, op := range strings.Split(opts.Operations, ",") {
			merged = append(merged, audit.Filter(entries, strings.ToLower(strings.TrimSpace(op)))...)
		}
		slices.SortStableFunc(merged, func(a, b audit.Entry) int { return strings.Compare(a.Timestamp, b.Timestamp) })
		entries = merged
	}
	if opts.Since != "" {
		since, err := time.Parse(time.DateOnly, opts.Since)
		if err != nil {
			return nil, fmt.Errorf("%w: --since date format invalid, use YYYY-MM-DD", kerrors.ErrInvalidRequest)
		}
		entries = filterEntries(entries, func(e audit.Entry) bool {
			t, ok := parseTimestamp(e.Timestamp)
			return ok && !t.Before(since)
		})
	}
	if opts.Until != "" {
		until, err := time.Parse(time.DateOnly, opts.Until)
		if err != nil {
			return nil, fmt.Errorf("%w: --until date format invalid, use YYYY-MM-DD", kerrors.ErrInvalidRequest)
		}
		// Include the whole day.
		until = until.Add(24*time.Hour - time.Nanosecond)
		entries = filterEntries(entries, func(e audit.Entry) bool {
			t, ok := parseTimestamp(e.Timestamp)
			return ok && !t.After(until)
		})
	}

	if opts.Reverse {
		slices.Reverse(entries)
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		if opts.Reverse {
			entries = entries[:opts.Limit]
		} else {
			entries = entries[len(entries)-opts.Limit:]
		}
	}

	result.Entries = entries
	return result, nil
}

func filterEntries(entries []audit.Entry, keep func(audit.Entry) bool) []audit.Entry {
	var out []audit.Entry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func parseTimestamp(ts string) (time.Time, bool) {
	t, err := time.Parse(timestampLayout, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339, ts)
	}
	return t, err == nil
}

// FormatDateTime formats a timestamp as YYYY-MM-DD HH:MM:SS.
func FormatDateTime(ts string) string {
	t, ok := parseTimestamp(ts)
	if !ok {
		if len(ts) >= 19 {
			return ts[:19]
		}
		return ts
	}
	return t.Format(time.DateTime)
}

// FormatDetails summarizes the operation-specific fields of an entry.
func FormatDetails(e audit.Entry) string {
	var parts []string
	if e.ItemID != "" {
		parts = append(parts, "item "+e.ItemID)
	}
	if e.Rotation != nil {
		parts = append(parts, fmt.Sprintf("rotation %d", *e.Rotation))
	}
	switch e.Operation {
	case audit.OpUpdateItem:
		parts = append(parts, fmt.Sprintf("revision %d", e.Revision))
	case audit.OpInviteEncrypt:
		parts = append(parts, fmt.Sprintf("%d keys to %s", e.KeysCount, e.TargetUser))
	case audit.OpInviteAccept:
		parts = append(parts, fmt.Sprintf("%d keys from %s", e.KeysCount, e.Inviter))
	case audit.OpSecurityEvent:
		parts = append(parts, e.Reason)
	}
	return strings.Join(parts, ", ")
}
