package client

import "sync"

// recorder implements Navigator and Notifier.
type recorder struct {
	mu      sync.Mutex
	views   []string
	notices []string
}

func (r *recorder) Redirect(view string) {
	r.mu.Lock()
	r.views = append(r.views, view)
	r.mu.Unlock()
}

func (r *recorder) Notify(message string) {
	r.mu.Lock()
	r.notices = append(r.notices, message)
	r.mu.Unlock()
}

func (r *recorder) calls() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.views...), append([]string(nil), r.notices...)
}
