package discussion

// Summary counts resolution progress across the discussions of one noteable.
type Summary struct {
	Resolvable int
	Resolved   int
}

func Summarize(discussions []*Discussion) Summary {
	var summary Summary
	for _, d := range discussions {
		if !d.Resolvable() {
			continue
		}
		summary.Resolvable++
		if d.Resolved() {
			summary.Resolved++
		}
	}
	return summary
}

// AllResolved is true when no resolvable discussion is waiting on action.
func (s Summary) AllResolved() bool {
	return s.Resolved == s.Resolvable
}

func (s Summary) Unresolved() int {
	return s.Resolvable - s.Resolved
}
