package telegram

import (
	"sync"
	"time"

	"quizdoc/api/internal/imaging"
)

const (
	defaultDebounce = 1200 * time.Millisecond
	maxPixels       = imaging.DefaultMaxPixels
)

// chatSettings are per-chat overrides set with /number and /page.
type chatSettings struct {
	mu     sync.Mutex
	number int    // next question number; 0 lets Notion number it
	page   string // parent page override
	last   []byte // last merged photo, for the retry button
}

type photoBatch struct {
	ChatID       int64
	Key          string // "grp:<mediaGroupID>" | "chat:<chatID>"
	MediaGroupID string

	mu     sync.Mutex
	images [][]byte
	timer  *time.Timer
}

func (r *Router) settings(chatID int64) *chatSettings {
	v, _ := r.chats.LoadOrStore(chatID, &chatSettings{})
	return v.(*chatSettings)
}
