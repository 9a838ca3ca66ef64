package dirstat

import (
	"container/heap"
	"sort"
)

// Ranking keeps the largest files offered to it, up to a fixed capacity.
// It is a min-heap on size: the root is the smallest retained file and the first to be evicted.
// Among equal sizes the lexicographically smaller path ranks higher.
type Ranking struct {
	limit int
	files fileHeap
}

// NewRanking creates a ranking holding at most limit files. A limit below 1 is treated as 1.
func NewRanking(limit int) *Ranking {
	if limit < 1 {
		limit = 1
	}

	return &Ranking{
		limit: limit,
		files: make(fileHeap, 0, limit),
	}
}

// Offer considers a file for the ranking and reports whether it was retained.
func (r *Ranking) Offer(file FileStat) bool {
	if len(r.files) < r.limit {
		heap.Push(&r.files, file)

		return true
	}

	if !outranks(file, r.files[0]) {
		return false
	}

	r.files[0] = file
	heap.Fix(&r.files, 0)

	return true
}

// Len returns the number of retained files.
func (r *Ranking) Len() int {
	return len(r.files)
}

// Limit returns the capacity of the ranking.
func (r *Ranking) Limit() int {
	return r.limit
}

// Files returns a copy of the retained files, largest first.
func (r *Ranking) Files() []FileStat {
	files := make([]FileStat, len(r.files))
	copy(files, r.files)

	sort.Slice(files, func(i, j int) bool {
		return outranks(files[i], files[j])
	})

	return files
}

// outranks reports whether a ranks above b.
func outranks(a, b FileStat) bool {
	if a.Size != b.Size {
		return a.Size > b.Size
	}

	return a.Path < b.Path
}

// fileHeap implements heap.Interface with the lowest ranked file at the root.
type fileHeap []FileStat

func (h fileHeap) Len() int           { return len(h) }
func (h fileHeap) Less(i, j int) bool { return outranks(h[j], h[i]) }
func (h fileHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *fileHeap) Push(x any) {
	*h = append(*h, x.(FileStat)) //nolint:forcetypeassert // only FileStat is ever pushed
}

func (h *fileHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}
