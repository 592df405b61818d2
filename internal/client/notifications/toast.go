package notifications

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/clock"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

const DefaultToastDuration = 4 * time.Second

type Toast struct {
	ID           string
	Notification models.Notification
	ShownAt      time.Time
}

// Toaster holds transient popups that dismiss themselves after a fixed
// duration. The feed keeps the permanent copy.
type Toaster struct {
	clock    clock.Clock
	duration time.Duration

	mu     sync.Mutex
	toasts []Toast
	timers map[string]clock.Timer
}

func NewToaster(clk clock.Clock, duration time.Duration) *Toaster {
	if duration <= 0 {
		duration = DefaultToastDuration
	}
	return &Toaster{clock: clk, duration: duration, timers: make(map[string]clock.Timer)}
}

func (t *Toaster) Show(n models.Notification) Toast {
	now := t.clock.Now()
	toast := Toast{
		ID:           ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Notification: n,
		ShownAt:      now,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.toasts = append(t.toasts, toast)
	t.timers[toast.ID] = t.clock.AfterFunc(t.duration, func() { t.Dismiss(toast.ID) })
	return toast
}

func (t *Toaster) Dismiss(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	for i, toast := range t.toasts {
		if toast.ID == id {
			t.toasts = append(t.toasts[:i], t.toasts[i+1:]...)
			return
		}
	}
}

func (t *Toaster) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Toast, len(t.toasts))
	copy(out, t.toasts)
	return out
}

// Stop dismisses every toast and cancels their timers.
func (t *Toaster) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = make(map[string]clock.Timer)
	t.toasts = nil
}
