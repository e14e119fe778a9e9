package model

// Side identifies which side of a diff a thread is anchored to.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Thread is one located discussion within a review's diff.
type Thread struct {
	ID       string `json:"id"`
	File     string `json:"file"`
	Side     Side   `json:"side"`
	Line     int    `json:"line"`
	Resolved bool   `json:"resolved"`
	Draft    bool   `json:"draft"`
}

// CountsAsUnresolved reports whether the thread participates in the parent
// review's unresolved accounting. Draft threads never count.
func (t Thread) CountsAsUnresolved() bool {
	return !t.Draft && !t.Resolved
}

// Matches reports whether the thread occupies the given diff position.
func (t Thread) Matches(file string, side Side, line int) bool {
	return t.File == file && t.Side == side && t.Line == line
}

// ThreadPair groups the left-side and right-side threads occupying the same
// file and line. Derived for diff rendering, never persisted.
type ThreadPair struct {
	Left  *Thread
	Right *Thread
}

// PairThreads pairs threads by file and line. Pairs appear in the order the
// first thread of each position appears in the input.
func PairThreads(threads []Thread) []ThreadPair {
	type key struct {
		file string
		line int
	}

	byPos := make(map[key]*ThreadPair)
	var order []key

	for i := range threads {
		t := &threads[i]
		k := key{file: t.File, line: t.Line}

		pair, ok := byPos[k]
		if !ok {
			pair = &ThreadPair{}
			byPos[k] = pair
			order = append(order, k)
		}

		if t.Side == SideLeft {
			pair.Left = t
		} else {
			pair.Right = t
		}
	}

	pairs := make([]ThreadPair, 0, len(order))
	for _, k := range order {
		pairs = append(pairs, *byPos[k])
	}
	return pairs
}
