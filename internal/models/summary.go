package models

// RunSummary is the outcome of one engine invocation.
type RunSummary struct {
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Remaining int      `json:"remaining"`
	Errors    []string `json:"errors"`
}

// AddError appends a message to the run's error list.
func (s *RunSummary) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}
