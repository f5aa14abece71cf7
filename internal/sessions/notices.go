package sessions

import (
	"sync"
	"time"
)

const defaultNoticeLimit = 20

type NoticeKind string

const (
	NoticeLoading NoticeKind = "loading"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notification is one transient message for the visitor.
type Notification struct {
	Key     string     `json:"key"`
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// Notices is a bounded feed of notifications. A notification with a key already in the
// feed replaces the earlier one. When full, the oldest entry is dropped.
type Notices struct {
	mu    sync.Mutex
	items []Notification
	limit int
	now   func() time.Time
}

func NewNotices(limit int) *Notices {
	if limit <= 0 {
		limit = defaultNoticeLimit
	}
	return &Notices{limit: limit, now: time.Now}
}

func (n *Notices) Loading(key, message string) { n.push(key, NoticeLoading, message) }
func (n *Notices) Success(key, message string) { n.push(key, NoticeSuccess, message) }
func (n *Notices) Error(key, message string)   { n.push(key, NoticeError, message) }

// Drain returns the pending notifications oldest first and empties the feed.
func (n *Notices) Drain() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.items
	n.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}

func (n *Notices) push(key string, kind NoticeKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, item := range n.items {
		if key != "" && item.Key == key {
			n.items = append(n.items[:i], n.items[i+1:]...)
			break
		}
	}
	n.items = append(n.items, Notification{Key: key, Kind: kind, Message: message, At: n.now().UTC()})
	if over := len(n.items) - n.limit; over > 0 {
		n.items = append([]Notification(nil), n.items[over:]...)
	}
}
