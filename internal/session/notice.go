package session

import (
	"sync"
	"time"
)

// Notices holds the current user-facing message and clears it after a fixed
// delay. A newer message restarts the delay.
type Notices struct {
	timeout  time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	current  string
	gen      uint64
	onChange func(string)
}

func NewNotices(timeout time.Duration) *Notices {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Notices{timeout: timeout}
}

func (n *Notices) OnChange(callback func(string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = callback
}

func (n *Notices) Show(msg string) {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	gen := n.gen
	n.current = msg
	callback := n.onChange

	n.timer = time.AfterFunc(n.timeout, func() {
		n.mu.Lock()
		if n.gen != gen {
			n.mu.Unlock()
			return
		}
		n.current = ""
		n.timer = nil
		callback := n.onChange
		n.mu.Unlock()

		if callback != nil {
			callback("")
		}
	})
	n.mu.Unlock()

	if callback != nil {
		callback(msg)
	}
}

func (n *Notices) Dismiss() {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.gen++
	had := n.current != ""
	n.current = ""
	callback := n.onChange
	n.mu.Unlock()

	if had && callback != nil {
		callback("")
	}
}

func (n *Notices) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
