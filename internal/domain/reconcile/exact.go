package reconcile

import (
	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/platform"
	"github.com/krbiz/backend/internal/domain/sheet"
)

// Pair is an order row with the delivery row assigned to it, nil when none
type Pair struct {
	Order    platform.OrderRow
	Delivery *delivery.Row
}

// PlatformPairs lists every order row of one platform in upload order
type PlatformPairs struct {
	Platform string
	Pairs    []Pair
}

// Result is the output of the exact policy
type Result struct {
	Outcomes  []Outcome
	Platforms []PlatformPairs
	Leftover  *sheet.Table
	Summary   Summary
}

type platformGroup struct {
	name string
	rows []platform.OrderRow
}

func groupByPlatform(batches []*platform.Batch) []platformGroup {
	var groups []platformGroup
	pos := make(map[string]int)
	for _, b := range batches {
		i, ok := pos[b.Platform()]
		if !ok {
			i = len(groups)
			pos[b.Platform()] = i
			groups = append(groups, platformGroup{name: b.Platform()})
		}
		groups[i].rows = append(groups[i].rows, b.Rows()...)
	}
	return groups
}

// Reconcile runs the exact policy. Every delivery row is classified against
// the full order set. Matched rows are then handed out to the order rows of
// platforms for which hasReport is true; an order row takes the first
// unclaimed delivery row matched to it. Delivery rows that end up unclaimed
// form the leftover table.
func Reconcile(in Input, hasReport func(platform string) bool) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if hasReport == nil {
		hasReport = func(string) bool { return true }
	}

	groups := groupByPlatform(in.Batches)
	deliveries := in.Delivery.Rows()
	outcomes := make([]Outcome, len(deliveries))
	var matcher ExactMatcher

	for i, d := range deliveries {
		outcomes[i] = classifyExact(matcher, d, groups, in.Pairs)
	}

	// assignment works on indexes over the immutable outcome snapshot
	claimed := make([]bool, len(deliveries))
	byOrder := make(map[orderKey][]int)
	for i, o := range outcomes {
		if o.Status == StatusMatched && hasReport(o.Platform) {
			k := keyOf(*o.Order)
			byOrder[k] = append(byOrder[k], i)
		}
	}

	result := &Result{Outcomes: outcomes}
	for _, g := range groups {
		if !hasReport(g.name) {
			continue
		}
		pp := PlatformPairs{Platform: g.name, Pairs: make([]Pair, 0, len(g.rows))}
		for _, o := range g.rows {
			pair := Pair{Order: o}
			for _, di := range byOrder[keyOf(o)] {
				if !claimed[di] {
					claimed[di] = true
					pair.Delivery = &deliveries[di]
					break
				}
			}
			pp.Pairs = append(pp.Pairs, pair)
		}
		result.Platforms = append(result.Platforms, pp)
	}

	result.Leftover = leftover(in.Delivery, deliveries, claimed)
	result.Summary = summarize(outcomes)
	result.Summary.Leftover = result.Leftover.Len()
	return result, nil
}

func classifyExact(m Matcher, d delivery.Row, groups []platformGroup, pairs map[string][]delivery.ColumnPair) Outcome {
	out := Outcome{Delivery: d, Status: StatusUnmatched}
	platforms := 0
	var only *platform.OrderRow
	var onlyPlatform string

	for _, g := range groups {
		found := 0
		for i := range g.rows {
			if m.Match(d, g.rows[i], pairs[g.name]) {
				found++
				if found == 1 {
					only = &g.rows[i]
				}
			}
		}
		if found > 0 {
			platforms++
			onlyPlatform = g.name
			out.Candidates += found
		}
	}

	switch {
	case out.Candidates == 0:
	case platforms == 1 && out.Candidates == 1:
		out.Status = StatusMatched
		out.Platform = onlyPlatform
		out.Order = only
	default:
		out.Status = StatusAmbiguous
	}
	return out
}

// leftover builds the table of delivery rows that were not claimed, without
// the columns that are blank across all of them
func leftover(c *delivery.Confirmation, rows []delivery.Row, claimed []bool) *sheet.Table {
	t := sheet.NewTable(c.Columns(), nil)
	for i, d := range rows {
		if !claimed[i] {
			t.AppendRecord(d.Record)
		}
	}
	return t.DropBlankColumns()
}
