package department

import (
	"errors"
	"strings"
	"time"
)

type Department struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

var ErrNotFound = errors.New("department not found")

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// MessageTemplate is a department-configured outbound notification.
// SendOffsetDays shifts delivery relative to registration time, so a
// department can schedule a reminder a few days after the invitation.
type MessageTemplate struct {
	ID             int64  `json:"id"`
	DepartmentID   int64  `json:"departmentId"`
	Channel        string `json:"channel"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	SendOffsetDays int    `json:"sendOffsetDays"`
}

// Render substitutes {placeholder} variables into the template subject and
// body. Unknown placeholders are left as-is.
func (t MessageTemplate) Render(vars map[string]string) (subject string, body string) {
	pairs := make([]string, 0, len(vars)*2)

	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}

	r := strings.NewReplacer(pairs...)

	return r.Replace(t.Subject), r.Replace(t.Body)
}
