// Package repeat pairs repeat markers in a step list and computes the rows each block runs over.
package repeat

import (
	"github.com/jeeftor/rowpilot/internal/macro"
)

// Block is a body of steps delimited by a matched begin/end marker pair
type Block struct {
	PairID string
	Begin  int // index of the begin marker
	End    int // index of the end marker
	Spec   macro.RepeatBegin
	Close  macro.RepeatEnd
}

// Body returns the steps strictly between the markers
func (b Block) Body(steps []macro.Step) []macro.Step {
	return steps[b.Begin+1 : b.End]
}

// Contains reports whether the top-level step index lies inside the block, markers included
func (b Block) Contains(i int) bool {
	return i >= b.Begin && i <= b.End
}

// FindBlocks scans steps once, pairing each begin with the first later end
// sharing its pair id. Unpaired begins and ends are reported together in a
// *macro.ValidationError; successfully paired blocks are still returned.
func FindBlocks(steps []macro.Step) ([]Block, error) {
	verr := &macro.ValidationError{}
	var blocks []Block
	claimed := map[int]bool{}

	for i, s := range steps {
		begin, ok := s.Action.(macro.RepeatBegin)
		if !ok {
			continue
		}
		end := -1
		for j := i + 1; j < len(steps); j++ {
			if e, isEnd := steps[j].Action.(macro.RepeatEnd); isEnd && e.PairID == begin.PairID && !claimed[j] {
				end = j
				break
			}
		}
		if end < 0 {
			verr.Add(s.ID, "pair_id", "repeat begin %q has no matching end", begin.PairID)
			continue
		}
		claimed[end] = true
		blocks = append(blocks, Block{
			PairID: begin.PairID,
			Begin:  i,
			End:    end,
			Spec:   begin,
			Close:  steps[end].Action.(macro.RepeatEnd),
		})
	}

	for j, s := range steps {
		if e, ok := s.Action.(macro.RepeatEnd); ok && !claimed[j] {
			verr.Add(s.ID, "pair_id", "repeat end %q has no matching begin", e.PairID)
		}
	}

	for a := 0; a < len(blocks); a++ {
		for b := a + 1; b < len(blocks); b++ {
			if blocks[b].Begin < blocks[a].End {
				verr.Add(steps[blocks[b].Begin].ID, "pair_id", "repeat block %q overlaps block %q", blocks[b].PairID, blocks[a].PairID)
			}
		}
	}

	return blocks, verr.Err()
}

// BlockAt returns the block whose begin marker sits at index i
func BlockAt(blocks []Block, i int) (Block, bool) {
	for _, b := range blocks {
		if b.Begin == i {
			return b, true
		}
	}
	return Block{}, false
}

// SkipPast returns the index just after the end marker paired with the begin
// at i, or i+1 when i is not a paired begin.
func SkipPast(steps []macro.Step, i int) int {
	begin, ok := steps[i].Action.(macro.RepeatBegin)
	if !ok {
		return i + 1
	}
	for j := i + 1; j < len(steps); j++ {
		if e, isEnd := steps[j].Action.(macro.RepeatEnd); isEnd && e.PairID == begin.PairID {
			return j + 1
		}
	}
	return i + 1
}
