// Package reconcile pairs delivery confirmation rows with order rows.
//
// Two policies exist and are selected explicitly:
//   - exact: every resolved key pair must be equal (raw or trimmed); used to
//     render per-platform delivery reports.
//   - substring: every key value must appear inside one of the order row's
//     values; used to backfill tracking numbers into the order files.
//
// Failing to match is never an error. Unmatched and ambiguous delivery rows
// are returned in a leftover table.
package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/platform"
)

var (
	ErrNoDeliveryConfirmation = errors.New("reconcile: no delivery confirmation uploaded")
	ErrUnknownPolicy          = errors.New("reconcile: unknown matching policy")
)

// Status is the classification of one delivery row
type Status string

const (
	StatusMatched   Status = "matched"
	StatusUnmatched Status = "unmatched"
	StatusAmbiguous Status = "ambiguous"
)

// Policy selects the matching strategy
type Policy string

const (
	PolicyExact     Policy = "exact"
	PolicySubstring Policy = "substring"
)

// ParsePolicy parses a policy name, case-insensitively
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyExact, PolicySubstring:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Matcher decides whether an order row agrees with a delivery row on every
// resolved key pair of the order's platform. With no pairs every row agrees.
type Matcher interface {
	Match(d delivery.Row, o platform.OrderRow, pairs []delivery.ColumnPair) bool
}

// ExactMatcher requires d[dc] == o[oc], comparing trimmed values as a fallback
type ExactMatcher struct{}

func (ExactMatcher) Match(d delivery.Row, o platform.OrderRow, pairs []delivery.ColumnPair) bool {
	for _, p := range pairs {
		dv, ov := d.Value(p.DeliveryColumn), o.Value(p.OrderColumn)
		if dv != ov && strings.TrimSpace(dv) != strings.TrimSpace(ov) {
			return false
		}
	}
	return true
}

// SubstringMatcher requires each delivery key value to occur inside at least
// one raw value of the order row, wherever its column is. An empty key value
// never matches.
type SubstringMatcher struct {
	TrimValues bool
}

func (m SubstringMatcher) Match(d delivery.Row, o platform.OrderRow, pairs []delivery.ColumnPair) bool {
	for _, p := range pairs {
		needle := d.Value(p.DeliveryColumn)
		if m.TrimValues {
			needle = strings.TrimSpace(needle)
		}
		if needle == "" || !containedIn(needle, o) {
			return false
		}
	}
	return true
}

func containedIn(needle string, o platform.OrderRow) bool {
	for _, v := range o.Raw {
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

// Input is everything one reconciliation pass reads. It is never mutated.
type Input struct {
	Batches  []*platform.Batch
	Delivery *delivery.Confirmation
	// Pairs holds the resolved match keys per platform name
	Pairs map[string][]delivery.ColumnPair
}

func (in Input) validate() error {
	if in.Delivery == nil || in.Delivery.Table == nil {
		return ErrNoDeliveryConfirmation
	}
	return nil
}

// Outcome is the classification of one delivery row. Order and Platform are
// set only for matched rows; Candidates counts every agreeing order row.
type Outcome struct {
	Delivery   delivery.Row
	Status     Status
	Platform   string
	Order      *platform.OrderRow
	Candidates int
}

type orderKey struct {
	file  string
	index int
}

func keyOf(o platform.OrderRow) orderKey {
	return orderKey{file: o.SourceFile, index: o.Index}
}
