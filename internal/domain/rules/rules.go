// Package rules composes ordered validators into a single pass/fail decision
// with fail-fast short-circuiting. Synchronous rules run over already
// available data; lookup rules may consult persisted state through whatever
// accessor they close over. Rules never write.
package rules

import (
	"context"
	"net/url"

	"github.com/xenking/catalog-engine/internal/domain/catalogerr"
)

// Rule is a synchronous validator over already-available data. It returns
// nil on pass or a business error describing the violation.
type Rule func() error

// LookupRule is a validator that must consult persisted state (existence
// checks, uniqueness checks, count ceilings). Accessor faults propagate
// unwrapped alongside business failures.
type LookupRule func(ctx context.Context) error

// Run executes rules in order and returns the first failure, or nil when all
// pass. No rule after the first failure executes.
func Run(rs ...Rule) error {
	for _, r := range rs {
		if err := r(); err != nil {
			return err
		}
	}
	return nil
}

// RunLookups executes lookup rules strictly sequentially in order, returning
// the first failure. Lookups are never issued concurrently so that failure
// ordering stays deterministic.
func RunLookups(ctx context.Context, rs ...LookupRule) error {
	for _, r := range rs {
		if err := r(ctx); err != nil {
			return err
		}
	}
	return nil
}

// MinLen requires value to be at least min bytes long.
func MinLen(field, value string, min int) Rule {
	return func() error {
		if len(value) < min {
			return catalogerr.Validationf("%s must be at least %d characters", field, min)
		}
		return nil
	}
}

// MaxLen requires value to be at most max bytes long.
func MaxLen(field, value string, max int) Rule {
	return func() error {
		if len(value) > max {
			return catalogerr.Validationf("%s must be at most %d characters", field, max)
		}
		return nil
	}
}

// NonNegative requires an integer field to be zero or greater.
func NonNegative(field string, value int) Rule {
	return func() error {
		if value < 0 {
			return catalogerr.Validationf("%s must not be negative", field)
		}
		return nil
	}
}

// AllPositive requires every id in the slice to be greater than zero.
func AllPositive(field string, ids []int64) Rule {
	return func() error {
		for _, id := range ids {
			if id <= 0 {
				return catalogerr.Validationf("%s must contain only positive ids", field)
			}
		}
		return nil
	}
}

// NoDuplicates requires every id in the slice to be distinct.
func NoDuplicates(field string, ids []int64) Rule {
	return func() error {
		seen := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				return catalogerr.Validationf("%s must not contain duplicate ids", field)
			}
			seen[id] = struct{}{}
		}
		return nil
	}
}

// AbsoluteURL requires value to parse as an absolute http or https URL with
// a host.
func AbsoluteURL(field, value string) Rule {
	return func() error {
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return catalogerr.Validationf("%s must be an absolute http or https URL", field)
		}
		return nil
	}
}
