package crawler

// Baseline is what the diff needs from a previous snapshot: its identities
// and the set of source prefixes that appeared in it.
type Baseline struct {
	Identities map[string]struct{}
	Prefixes   map[string]struct{}
}

// NewBaseline builds a baseline from a snapshot's jobs
func NewBaseline(jobs []Job) Baseline {
	b := Baseline{
		Identities: make(map[string]struct{}, len(jobs)),
		Prefixes:   make(map[string]struct{}),
	}
	for _, job := range jobs {
		b.Identities[job.Identity] = struct{}{}
		b.Prefixes[Prefix(job.Identity)] = struct{}{}
	}
	return b
}

// Empty reports whether the baseline knows nothing at all
func (b Baseline) Empty() bool {
	return len(b.Identities) == 0 && len(b.Prefixes) == 0
}

// Diff returns the jobs of current that are new relative to base, in order.
//
// Jobs from a prefix that never appeared in the baseline are not reported:
// a freshly added or freshly recovered source would otherwise flag its whole
// result set. That rule is skipped only when the baseline is empty, in which
// case everything is new.
func Diff(current []Job, base Baseline) []Job {
	suppressAbsent := !base.Empty()

	out := make([]Job, 0)
	for _, job := range current {
		if _, seen := base.Identities[job.Identity]; seen {
			continue
		}
		if suppressAbsent {
			if _, known := base.Prefixes[Prefix(job.Identity)]; !known {
				continue
			}
		}
		out = append(out, job)
	}
	return out
}

// AbsentPrefixes lists prefixes of current that the baseline has never seen, in first-seen order
func AbsentPrefixes(current []Job, base Baseline) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, job := range current {
		p := Prefix(job.Identity)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if _, known := base.Prefixes[p]; !known {
			out = append(out, p)
		}
	}
	return out
}
