package message

import (
	"errors"
	"time"

	"github.com/geocoder89/surveyhub/internal/domain/department"
	"github.com/geocoder89/surveyhub/internal/domain/subject"
	"github.com/google/uuid"
)

// a Message is one scheduled outbound notification, created from a
// department template at registration time and delivered by the worker.
// the messages table doubles as the delivery queue.

type Status string

const (
	StatusPending Status = "pending"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusDead    Status = "dead"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSending, StatusSent, StatusFailed, StatusDead:
		return true
	}
	return false
}

type Message struct {
	ID          string     `json:"id"`
	SubjectID   string     `json:"subjectId"`
	Channel     string     `json:"channel"`
	Recipient   string     `json:"recipient"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	Status      Status     `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	RunAt       time.Time  `json:"runAt"`
	LockedAt    *time.Time `json:"lockedAt,omitempty"`
	LockedBy    *string    `json:"lockedBy,omitempty"`
	LastError   *string    `json:"lastError,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

var (
	ErrNotFound = errors.New("message not found")

	// ErrNoneDue means no message is ready to be claimed.
	ErrNoneDue = errors.New("no message due")

	// ErrNoRecipient means the subject has no contact field for the
	// template's channel; the template is skipped, not failed.
	ErrNoRecipient = errors.New("subject has no recipient for channel")

	ErrInvalidStatus = errors.New("invalid message status")
)

const defaultMaxAttempts = 10

// NewFromTemplate renders a department template for a freshly registered
// subject. RunAt honors the template's send offset relative to registration
// time, which is how scheduled delivery works.
func NewFromTemplate(tpl department.MessageTemplate, sub subject.Subject, token, surveyName string, registeredAt time.Time) (Message, error) {
	recipient := sub.Email
	if tpl.Channel == department.ChannelSMS {
		recipient = sub.Phone
	}

	if recipient == "" {
		return Message{}, ErrNoRecipient
	}

	subjLine, body := tpl.Render(map[string]string{
		"firstName":  sub.FirstName,
		"lastName":   sub.LastName,
		"middleName": sub.MiddleName,
		"token":      token,
		"surveyName": surveyName,
	})

	now := time.Now().UTC()

	return Message{
		ID:          uuid.NewString(),
		SubjectID:   sub.ID,
		Channel:     tpl.Channel,
		Recipient:   recipient,
		Subject:     subjLine,
		Body:        body,
		Status:      StatusPending,
		Attempts:    0,
		MaxAttempts: defaultMaxAttempts,
		RunAt:       registeredAt.AddDate(0, 0, tpl.SendOffsetDays),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
