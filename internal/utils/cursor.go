package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

type SubjectCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

type MessageCursor struct {
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
}

func EncodeSubjectCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(SubjectCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeSubjectCursor(cursor string) (SubjectCursor, error) {
	if cursor == "" {
		return SubjectCursor{}, errors.New("empty cursor")
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return SubjectCursor{}, err
	}

	var c SubjectCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return SubjectCursor{}, err
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return SubjectCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}

func EncodeMessageCursor(updatedAt time.Time, id string) (string, error) {
	b, err := json.Marshal(MessageCursor{UpdatedAt: updatedAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeMessageCursor(cursor string) (MessageCursor, error) {
	if cursor == "" {
		return MessageCursor{}, errors.New("empty cursor")
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return MessageCursor{}, err
	}
	var c MessageCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return MessageCursor{}, err
	}
	if c.ID == "" || c.UpdatedAt.IsZero() {
		return MessageCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}
