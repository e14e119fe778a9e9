package model

import "time"

// Comment is a single message within a discussion thread. ThreadID is a
// back-reference only; comments are stored under the review, not the thread.
type Comment struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Username  string    `json:"username"`
	PhotoURL  string    `json:"photoURL"`
	Text      string    `json:"text"`
	Draft     bool      `json:"draft"`
	Timestamp time.Time `json:"timestamp"`
}
