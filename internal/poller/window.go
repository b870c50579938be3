package poller

import "github.com/e2b-dev/infra/packages/host-metrics/internal/api"

const DefaultWindowSize = 10

// Window keeps the last size samples in arrival order.
type Window struct {
	size  int
	items []api.ServerMetrics
}

func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}

	return &Window{size: size, items: make([]api.ServerMetrics, 0, size)}
}

// Push appends m, dropping the oldest entry when full. It returns false when m
// is the sample already at the end of the window.
func (w *Window) Push(m api.ServerMetrics) bool {
	if n := len(w.items); n > 0 && w.items[n-1].ID == m.ID {
		return false
	}

	if len(w.items) == w.size {
		copy(w.items, w.items[1:])
		w.items = w.items[:w.size-1]
	}

	w.items = append(w.items, m)

	return true
}

func (w *Window) Items() []api.ServerMetrics {
	out := make([]api.ServerMetrics, len(w.items))
	copy(out, w.items)

	return out
}

func (w *Window) Len() int {
	return len(w.items)
}
