package domain

import "time"

// Subscriber represents a digest recipient. A repeated signup with the same
// email merges the selected exams instead of replacing them; unsubscribe
// clears Active but keeps the record.
type Subscriber struct {
	ID        int64
	Email     string
	Exams     []string
	Active    bool
	Verified  bool
	CreatedAt time.Time
}

// DeliveryLog is an append-only record of a digest delivery attempt.
type DeliveryLog struct {
	ID           int64
	SubscriberID int64
	Email        string
	Subject      string
	ItemCount    int
	Status       string
	CreatedAt    time.Time
}

// ExamRequest records a user asking for an exam to be covered. Intake only
// acknowledges the request; there is no processing guarantee.
type ExamRequest struct {
	ID        int64
	Exam      string
	Sources   string
	Email     string
	CreatedAt time.Time
}
