package repeat

import (
	"github.com/jeeftor/rowpilot/internal/macro"
)

// RowSet computes the ordered row indices a repeat block iterates over.
// rowCount is the number of available rows and pending the indices the row
// source reports as incomplete.
func RowSet(spec macro.RepeatBegin, rowCount int, pending []int) []int {
	if rowCount <= 0 {
		return nil
	}

	switch spec.Mode {
	case macro.RepeatIncompleteOnly:
		out := make([]int, 0, len(pending))
		for _, i := range pending {
			if i >= 0 && i < rowCount {
				out = append(out, i)
			}
		}
		return out
	case macro.RepeatSpecificCount:
		return span(0, min(spec.Count, rowCount)-1)
	case macro.RepeatRange:
		start := max(spec.Start, 0)
		end := min(spec.End, rowCount-1)
		return span(start, end)
	default:
		return span(0, rowCount-1)
	}
}

// span returns [a, b] inclusive, or nil when b < a
func span(a, b int) []int {
	if b < a {
		return nil
	}
	out := make([]int, 0, b-a+1)
	for i := a; i <= b; i++ {
		out = append(out, i)
	}
	return out
}
