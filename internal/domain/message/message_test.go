package message_test

import (
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/surveyhub/internal/domain/department"
	"github.com/geocoder89/surveyhub/internal/domain/message"
	"github.com/geocoder89/surveyhub/internal/domain/subject"
)

func baseSubject() subject.Subject {
	return subject.Subject{
		ID:           "sub-1",
		RespondentID: "resp-1",
		DepartmentID: 7,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.org",
		Phone:        "+1555000",
	}
}

func TestNewFromTemplateRendersPlaceholders(t *testing.T) {
	tpl := department.MessageTemplate{
		ID:           1,
		DepartmentID: 7,
		Channel:      department.ChannelEmail,
		Subject:      "Your {surveyName} invitation",
		Body:         "Hello {firstName} {lastName}, your access token is {token}.",
	}

	registered := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m, err := message.NewFromTemplate(tpl, baseSubject(), "xw7kq2mfp", "Staff Survey", registered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Subject != "Your Staff Survey invitation" {
		t.Fatalf("subject not rendered: %q", m.Subject)
	}
	if m.Body != "Hello Ada Lovelace, your access token is xw7kq2mfp." {
		t.Fatalf("body not rendered: %q", m.Body)
	}
	if m.Recipient != "ada@example.org" {
		t.Fatalf("recipient = %q, want subject email", m.Recipient)
	}
	if m.Status != message.StatusPending {
		t.Fatalf("status = %q, want pending", m.Status)
	}
	if !m.RunAt.Equal(registered) {
		t.Fatalf("runAt = %v, want registration time for zero offset", m.RunAt)
	}
}

func TestNewFromTemplateHonorsSendOffset(t *testing.T) {
	tpl := department.MessageTemplate{
		Channel:        department.ChannelEmail,
		Subject:        "Reminder",
		Body:           "Reminder for {firstName}",
		SendOffsetDays: 3,
	}

	registered := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m, err := message.NewFromTemplate(tpl, baseSubject(), "tok", "S", registered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := registered.AddDate(0, 0, 3)
	if !m.RunAt.Equal(want) {
		t.Fatalf("runAt = %v, want %v", m.RunAt, want)
	}
}

func TestNewFromTemplateSMSUsesPhone(t *testing.T) {
	tpl := department.MessageTemplate{
		Channel: department.ChannelSMS,
		Body:    "token {token}",
	}

	m, err := message.NewFromTemplate(tpl, baseSubject(), "tok", "S", time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Recipient != "+1555000" {
		t.Fatalf("recipient = %q, want phone", m.Recipient)
	}
}

func TestNewFromTemplateMissingRecipient(t *testing.T) {
	tpl := department.MessageTemplate{
		Channel: department.ChannelSMS,
		Body:    "token {token}",
	}

	sub := baseSubject()
	sub.Phone = ""

	_, err := message.NewFromTemplate(tpl, sub, "tok", "S", time.Now().UTC())
	if !errors.Is(err, message.ErrNoRecipient) {
		t.Fatalf("got %v, want ErrNoRecipient", err)
	}
}
