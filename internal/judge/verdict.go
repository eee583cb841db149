package judge

import (
	"strconv"

	"codebench/internal/domain/model"
)

// Verdict is the aggregated outcome of grading one submission against an
// ordered set of test cases.
type Verdict struct {
	Status       model.SubmissionStatus
	Passed       int
	Runtime      float64 // sum of elapsed seconds over passed test cases
	Memory       int     // max KB over passed test cases
	ErrorMessage *string
}

// Aggregate reduces raw results, in input order, into a single verdict.
//
// Accepted results accumulate passed count, runtime and peak memory. The
// first non-accepted result fixes both the verdict classification (status id
// 4 downgrades to error, anything else to wrong) and the error message; later
// failures do not overwrite it, while later accepted results keep
// accumulating. An empty input yields accepted with zero passed, which the
// problem data model keeps out of production flows.
func Aggregate(results []TestResult) Verdict {
	v := Verdict{Status: model.StatusAccepted}

	for _, r := range results {
		if r.StatusID == StatusIDAccepted {
			v.Passed++
			if r.Time != nil {
				if elapsed, err := strconv.ParseFloat(*r.Time, 64); err == nil {
					v.Runtime += elapsed
				}
			}
			if r.Memory != nil && *r.Memory > v.Memory {
				v.Memory = *r.Memory
			}
			continue
		}

		if v.Status != model.StatusAccepted {
			continue // first observed failure wins
		}
		if r.StatusID == StatusIDRuntimeError {
			v.Status = model.StatusError
		} else {
			v.Status = model.StatusWrong
		}
		msg := ""
		if r.Stderr != nil {
			msg = *r.Stderr
		}
		v.ErrorMessage = &msg
	}

	return v
}
