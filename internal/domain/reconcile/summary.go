package reconcile

// Summary counts the outcome of a pass for user-facing display
type Summary struct {
	DeliveryRows int            `json:"delivery_rows"`
	Matched      int            `json:"matched"`
	Unmatched    int            `json:"unmatched"`
	Ambiguous    int            `json:"ambiguous"`
	Leftover     int            `json:"leftover"`
	PerPlatform  map[string]int `json:"per_platform"`
}

func summarize(outcomes []Outcome) Summary {
	s := Summary{DeliveryRows: len(outcomes), PerPlatform: make(map[string]int)}
	for _, o := range outcomes {
		switch o.Status {
		case StatusMatched:
			s.Matched++
			s.PerPlatform[o.Platform]++
		case StatusUnmatched:
			s.Unmatched++
		case StatusAmbiguous:
			s.Ambiguous++
		}
	}
	return s
}
