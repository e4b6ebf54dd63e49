package recon

import (
	"time"

	"github.com/google/uuid"
)

// summarize counts results per status.
func summarize(results []ProbeResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusOpen:
			s.Open++
		case StatusFiltered:
			s.Filtered++
		case StatusClosed:
			s.Closed++
		default:
			s.Errors++
		}
	}
	return s
}

// newReport assembles a report from results already in requested order.
func newReport(mode Mode, target Target, startedAt time.Time, results []ProbeResult) *Report {
	return &Report{
		ID:        uuid.New(),
		Mode:      mode,
		Target:    target,
		StartedAt: startedAt.UTC(),
		Duration:  time.Since(startedAt),
		Results:   results,
		Summary:   summarize(results),
	}
}

// isHostUp reports whether any probe proves the host answered. An accepted
// connection or an active refusal both come from the host itself; timeouts
// and unreachable routes prove nothing.
func isHostUp(results []ProbeResult) bool {
	for _, r := range results {
		if r.Status == StatusOpen || r.Status == StatusClosed {
			return true
		}
	}
	return false
}

// newLivenessResult derives the liveness answer from a quick report.
func newLivenessResult(report *Report) *LivenessResult {
	return &LivenessResult{
		Target:        report.Target,
		IsUp:          isHostUp(report.Results),
		OpenPortCount: report.Summary.Open,
		Results:       report.Results,
	}
}
