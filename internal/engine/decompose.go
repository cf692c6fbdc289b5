package engine

// Decompose returns every way to pick exactly one value from each group so
// that the picks sum to target. Each returned slice has one entry per group,
// in group order. With zero groups the only decomposition of 0 is the empty
// one; any other target has none.
//
// Depth-first search with a sum bound: all values are positive, so a partial
// sum that overshoots the target can never recover and the branch is cut.
// Worst case is still exponential in the group count; callers that need a
// bound must impose one before calling.
func Decompose(target int, groups [][]int) [][]int {
	if len(groups) == 0 {
		if target == 0 {
			return [][]int{{}}
		}
		return nil
	}
	var out [][]int
	partial := make([]int, 0, len(groups))
	var walk func(depth, sum int)
	walk = func(depth, sum int) {
		if depth == len(groups) {
			if sum == target {
				out = append(out, append([]int(nil), partial...))
			}
			return
		}
		for _, v := range groups[depth] {
			if sum+v > target {
				continue
			}
			partial = append(partial, v)
			walk(depth+1, sum+v)
			partial = partial[:len(partial)-1]
		}
	}
	walk(0, 0)
	return out
}
