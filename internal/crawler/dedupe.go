package crawler

// Dedupe keeps the first job seen for each identity, in input order
func Dedupe(jobs []Job) []Job {
	seen := make(map[string]struct{}, len(jobs))
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if _, ok := seen[job.Identity]; ok {
			continue
		}
		seen[job.Identity] = struct{}{}
		out = append(out, job)
	}
	return out
}
