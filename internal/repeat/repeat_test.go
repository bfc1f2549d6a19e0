package repeat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeftor/rowpilot/internal/macro"
)

func step(id string, a macro.Action) macro.Step {
	return macro.Step{ID: id, Enabled: true, OnError: macro.PolicyStop, Action: a}
}

func TestRowSet(t *testing.T) {
	pending := []int{1, 4, 7, 12}

	tests := []struct {
		name     string
		spec     macro.RepeatBegin
		rows     int
		expected []int
	}{
		{"all", macro.RepeatBegin{Mode: macro.RepeatAll}, 4, []int{0, 1, 2, 3}},
		{"incomplete only drops out of range", macro.RepeatBegin{Mode: macro.RepeatIncompleteOnly}, 10, []int{1, 4, 7}},
		{"specific count", macro.RepeatBegin{Mode: macro.RepeatSpecificCount, Count: 3}, 10, []int{0, 1, 2}},
		{"specific count clamped", macro.RepeatBegin{Mode: macro.RepeatSpecificCount, Count: 30}, 2, []int{0, 1}},
		{"range inclusive", macro.RepeatBegin{Mode: macro.RepeatRange, Start: 2, End: 4}, 10, []int{2, 3, 4}},
		{"range clamped", macro.RepeatBegin{Mode: macro.RepeatRange, Start: 8, End: 20}, 10, []int{8, 9}},
		{"range beyond rows", macro.RepeatBegin{Mode: macro.RepeatRange, Start: 15, End: 20}, 10, nil},
		{"no rows", macro.RepeatBegin{Mode: macro.RepeatAll}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RowSet(tt.spec, tt.rows, pending))
		})
	}
}

func TestFindBlocks(t *testing.T) {
	steps := []macro.Step{
		step("pre", macro.Wait{Seconds: 1}),
		step("b1", macro.RepeatBegin{PairID: "p1"}),
		step("body1", macro.TypeText{Text: "x"}),
		step("e1", macro.RepeatEnd{PairID: "p1", MarkComplete: true}),
		step("b2", macro.RepeatBegin{PairID: "p2", Mode: macro.RepeatRange, Start: 1, End: 2}),
		step("e2", macro.RepeatEnd{PairID: "p2"}),
	}

	blocks, err := FindBlocks(steps)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, "p1", blocks[0].PairID)
	assert.Equal(t, 1, blocks[0].Begin)
	assert.Equal(t, 3, blocks[0].End)
	assert.Len(t, blocks[0].Body(steps), 1)
	assert.True(t, blocks[0].Close.MarkComplete)
	assert.True(t, blocks[0].Contains(2))
	assert.False(t, blocks[0].Contains(0))

	assert.Empty(t, blocks[1].Body(steps))
	assert.Equal(t, macro.RepeatRange, blocks[1].Spec.Mode)

	b, ok := BlockAt(blocks, 4)
	assert.True(t, ok)
	assert.Equal(t, "p2", b.PairID)
}

func TestFindBlocksUnpaired(t *testing.T) {
	steps := []macro.Step{
		step("b1", macro.RepeatBegin{PairID: "p1"}),
		step("body", macro.TypeText{Text: "x"}),
		step("e2", macro.RepeatEnd{PairID: "other"}),
	}

	blocks, err := FindBlocks(steps)
	require.Error(t, err)
	assert.True(t, macro.IsValidationError(err))
	assert.Contains(t, err.Error(), `repeat begin "p1" has no matching end`)
	assert.Contains(t, err.Error(), `repeat end "other" has no matching begin`)
	assert.Empty(t, blocks)
}

func TestFindBlocksEndBeforeBeginIsUnpaired(t *testing.T) {
	steps := []macro.Step{
		step("e1", macro.RepeatEnd{PairID: "p"}),
		step("b1", macro.RepeatBegin{PairID: "p"}),
	}

	_, err := FindBlocks(steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no matching end")
}

func TestFindBlocksOverlap(t *testing.T) {
	steps := []macro.Step{
		step("b1", macro.RepeatBegin{PairID: "a"}),
		step("b2", macro.RepeatBegin{PairID: "b"}),
		step("e1", macro.RepeatEnd{PairID: "a"}),
		step("e2", macro.RepeatEnd{PairID: "b"}),
	}

	_, err := FindBlocks(steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlaps")
}

func TestSkipPast(t *testing.T) {
	steps := []macro.Step{
		step("b1", macro.RepeatBegin{PairID: "p"}),
		step("x", macro.Wait{Seconds: 1}),
		step("e1", macro.RepeatEnd{PairID: "p"}),
		step("y", macro.Wait{Seconds: 1}),
	}

	assert.Equal(t, 3, SkipPast(steps, 0))
	assert.Equal(t, 2, SkipPast(steps, 1))
}
