package retrieval

// candidate is a scored snapshot position.
type candidate struct {
	pos   int
	score float64
}

// worse orders candidates by rank: lower score first, and for equal scores
// the later snapshot position first.
func worse(a, b candidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.pos > b.pos
}

// topK keeps the k best candidates in a value-based min-heap whose root is
// the worst kept candidate.
type topK struct {
	k     int
	items []candidate
}

// newTopK sizes the backing slice for at most n offers.
func newTopK(k, n int) *topK {
	return &topK{k: k, items: make([]candidate, 0, min(k, n))}
}

// offer inserts c when the heap has room or c outranks the root.
func (h *topK) offer(c candidate) {
	if len(h.items) < h.k {
		h.items = append(h.items, c)
		h.siftUp(len(h.items) - 1)
		return
	}
	if !worse(h.items[0], c) {
		return
	}
	h.items[0] = c
	h.siftDown(0)
}

// sorted drains the heap best first.
func (h *topK) sorted() []candidate {
	out := make([]candidate, len(h.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = h.pop()
	}
	return out
}

func (h *topK) pop() candidate {
	n := len(h.items)
	root := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return root
}

func (h *topK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !worse(h.items[i], h.items[p]) {
			return
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *topK) siftDown(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && worse(h.items[r], h.items[l]) {
			best = r
		}
		if !worse(h.items[best], h.items[i]) {
			return
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
}
