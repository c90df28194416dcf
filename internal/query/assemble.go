package query

// Assemble computes the workstream-level view from the full step
// sequence: the deduplicated union of every step's issues in
// first-seen order across steps, and a truncation flag equal to the
// OR of every step's flag. Per-step results stay individually
// inspectable; this is only the display-level rollup.
func Assemble(steps []Result) Aggregate {
	var agg Aggregate
	seen := make(map[string]bool)
	for _, step := range steps {
		agg.Truncated = agg.Truncated || step.Truncated
		for _, is := range step.Issues {
			if !seen[is.Key] {
				seen[is.Key] = true
				agg.Issues = append(agg.Issues, is)
			}
		}
	}
	return agg
}
