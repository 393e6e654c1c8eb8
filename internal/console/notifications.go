package console

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the notification style.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a transient, dismissible message for the operator.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Dismissed bool      `json:"dismissed,omitempty"`
}

// Expired reports whether n has passed its expiry at now.
func (n Notification) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// Notifications is a thread-safe ring buffer of notifications
type Notifications struct {
	mu      sync.RWMutex
	entries []Notification
	cap     int
	ttl     time.Duration
	now     func() time.Time
}

// NewNotifications creates a buffer holding at most capacity notifications,
// each visible for ttl.
func NewNotifications(capacity int, ttl time.Duration) *Notifications {
	if capacity <= 0 {
		capacity = 50
	}
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &Notifications{
		entries: make([]Notification, 0, capacity),
		cap:     capacity,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add records a notification and returns it.
func (nb *Notifications) Add(kind Kind, message string) Notification {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	now := nb.now()
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(nb.ttl),
	}

	if len(nb.entries) >= nb.cap {
		copy(nb.entries, nb.entries[1:])
		nb.entries[len(nb.entries)-1] = n
	} else {
		nb.entries = append(nb.entries, n)
	}
	return n
}

// Active returns undismissed, unexpired notifications (newest first)
func (nb *Notifications) Active() []Notification {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	now := nb.now()
	result := make([]Notification, 0)
	for i := len(nb.entries) - 1; i >= 0; i-- {
		n := nb.entries[i]
		if n.Dismissed || n.Expired(now) {
			continue
		}
		result = append(result, n)
	}
	return result
}

// All returns every buffered notification (newest first)
func (nb *Notifications) All() []Notification {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	result := make([]Notification, len(nb.entries))
	for i, j := 0, len(nb.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = nb.entries[j]
	}
	return result
}

// Dismiss hides the notification with the given ID.
func (nb *Notifications) Dismiss(id string) bool {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	for i := len(nb.entries) - 1; i >= 0; i-- {
		if nb.entries[i].ID == id {
			nb.entries[i].Dismissed = true
			return true
		}
	}
	return false
}
