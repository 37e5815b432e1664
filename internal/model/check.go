package model

import "slices"

// CheckStatus is the outcome of a doctor check.
type CheckStatus string

const (
	CheckStatusOK      CheckStatus = "ok"
	CheckStatusWarning CheckStatus = "warning"
	// CheckStatusError blocks starting or installing the bot.
	CheckStatusError CheckStatus = "error"
)

// CheckResult is the result of a single doctor check, e.g. `runtime_available`.
type CheckResult struct {
	ID      string
	Message string
	Status  CheckStatus
}

// HasErrors returns true if any check failed.
func HasErrors(results []CheckResult) bool {
	return slices.ContainsFunc(results, func(r CheckResult) bool { return r.Status == CheckStatusError })
}

// CheckSummary counts check results by status.
type CheckSummary struct {
	OK       int
	Warnings int
	Errors   int
}

// SummarizeChecks counts the results by status.
func SummarizeChecks(results []CheckResult) CheckSummary {
	var s CheckSummary
	for _, r := range results {
		switch r.Status {
		case CheckStatusOK:
			s.OK++
		case CheckStatusWarning:
			s.Warnings++
		case CheckStatusError:
			s.Errors++
		}
	}
	return s
}
