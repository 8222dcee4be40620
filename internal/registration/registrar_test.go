package registration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/geocoder89/surveyhub/internal/domain/department"
	"github.com/geocoder89/surveyhub/internal/domain/respondent"
	"github.com/geocoder89/surveyhub/internal/domain/subject"
	"github.com/geocoder89/surveyhub/internal/registration"
	"github.com/geocoder89/surveyhub/internal/repo/memory"
	"github.com/geocoder89/surveyhub/internal/token"
)

func validRequest() subject.AddRequest {
	return subject.AddRequest{
		SurveyID:     1,
		DepartmentID: 10,
		FirstName:    "Grace",
		LastName:     "Hopper",
		DateOfBirth:  "1906-12-09",
		Email:        "grace@example.org",
	}
}

func newRegistrar(t *testing.T, store *memory.RegistrationStore) *registration.Registrar {
	t.Helper()

	gen, err := token.NewGenerator(token.DefaultLength, token.DefaultAlphabet)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	iss := token.NewIssuer(gen, store, nil)

	return registration.NewRegistrar(iss, store, nil)
}

func seededStore() *memory.RegistrationStore {
	store := memory.NewRegistrationStore()
	store.AddSurvey(1, "Staff Survey")
	store.AddDepartment(10, department.MessageTemplate{
		DepartmentID: 10,
		Channel:      department.ChannelEmail,
		Subject:      "{surveyName} invitation",
		Body:         "Hi {firstName}, use token {token}.",
	})
	return store
}

func TestRegisterHappyPath(t *testing.T) {
	store := seededStore()
	rg := newRegistrar(t, store)

	res, err := rg.Register(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if res.SubjectID == "" || res.RespondentID == "" {
		t.Fatalf("result missing ids: %+v", res)
	}
	if len(res.Token) != token.DefaultLength {
		t.Fatalf("token length = %d, want %d", len(res.Token), token.DefaultLength)
	}

	if len(store.Subjects) != 1 || len(store.Respondents) != 1 {
		t.Fatalf("persisted %d subjects / %d respondents, want 1/1",
			len(store.Subjects), len(store.Respondents))
	}

	// one email template, subject has an email -> exactly one message
	if len(store.Messages) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(store.Messages))
	}
	if store.Messages[0].Recipient != "grace@example.org" {
		t.Fatalf("message recipient = %q", store.Messages[0].Recipient)
	}

	if store.Subjects[0].RespondentID != store.Respondents[0].ID {
		t.Fatalf("subject not linked to its respondent")
	}
}

func TestRegisterValidationRunsBeforePersistence(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*subject.AddRequest)
		wantErr error
	}{
		{
			name: "no_contact_method",
			mutate: func(r *subject.AddRequest) {
				r.Email = ""
				r.Phone = "   "
			},
			wantErr: subject.ErrContactRequired,
		},
		{
			name: "blank_first_name",
			mutate: func(r *subject.AddRequest) {
				r.FirstName = "  "
			},
			wantErr: subject.ErrFirstNameBlank,
		},
		{
			name: "blank_last_name",
			mutate: func(r *subject.AddRequest) {
				r.LastName = ""
			},
			wantErr: subject.ErrLastNameBlank,
		},
		{
			name: "missing_survey_id",
			mutate: func(r *subject.AddRequest) {
				r.SurveyID = 0
			},
			wantErr: subject.ErrSurveyRequired,
		},
		{
			name: "bad_date",
			mutate: func(r *subject.AddRequest) {
				r.DateOfBirth = "15-05-1990"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore()
			rg := newRegistrar(t, store)

			req := validRequest()
			tt.mutate(&req)

			_, err := rg.Register(context.Background(), req)
			if err == nil {
				t.Fatalf("expected a validation error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}

			// the spy store must not have been touched
			if store.CreateCalls != 0 {
				t.Fatalf("store called %d times before validation passed", store.CreateCalls)
			}
		})
	}
}

func TestRegisterReissuesWhenInsertLosesRace(t *testing.T) {
	store := seededStore()
	store.FailNextWith = respondent.ErrTokenTaken

	rg := newRegistrar(t, store)

	res, err := rg.Register(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected a token after reissue")
	}

	// first insert lost the race, second succeeded
	if store.CreateCalls != 2 {
		t.Fatalf("store called %d times, want 2", store.CreateCalls)
	}
}

func TestRegisterUnknownReferences(t *testing.T) {
	store := seededStore()
	rg := newRegistrar(t, store)

	req := validRequest()
	req.DepartmentID = 999

	_, err := rg.Register(context.Background(), req)
	if !errors.Is(err, department.ErrNotFound) {
		t.Fatalf("got %v, want department.ErrNotFound", err)
	}

	req = validRequest()
	req.SurveyID = 999

	_, err = rg.Register(context.Background(), req)

	// the issuer's uniqueness check trips first and wraps the cause
	var genErr *token.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("got %v, want *token.GenerationError", err)
	}
}

func TestRegisterDuplicateExternalID(t *testing.T) {
	store := seededStore()
	rg := newRegistrar(t, store)

	req := validRequest()
	req.ExternalID = "EMP-007"

	if _, err := rg.Register(context.Background(), req); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	req.Email = "other@example.org"

	_, err := rg.Register(context.Background(), req)
	if !errors.Is(err, subject.ErrExternalIDExists) {
		t.Fatalf("got %v, want subject.ErrExternalIDExists", err)
	}
}
