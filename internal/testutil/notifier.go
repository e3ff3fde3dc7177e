package testutil

import (
	"context"
	"sync"
)

// SentDigest is one message captured by RecordingNotifier.
type SentDigest struct {
	UserID string
	Text   string
}

// RecordingNotifier captures digests instead of delivering them. Users listed
// in Fail get an error. Safe for concurrent use.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentDigest
	Fail map[string]error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{Fail: map[string]error{}}
}

func (n *RecordingNotifier) Notify(_ context.Context, userID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.Fail[userID]; err != nil {
		return err
	}
	n.sent = append(n.sent, SentDigest{UserID: userID, Text: text})
	return nil
}

// Sent returns a copy of the captured digests in send order.
func (n *RecordingNotifier) Sent() []SentDigest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentDigest(nil), n.sent...)
}
