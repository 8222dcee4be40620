package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/geocoder89/surveyhub/internal/domain/department"
	"github.com/geocoder89/surveyhub/internal/domain/message"
	"github.com/geocoder89/surveyhub/internal/domain/respondent"
	"github.com/geocoder89/surveyhub/internal/domain/subject"
	"github.com/geocoder89/surveyhub/internal/domain/survey"
	"github.com/geocoder89/surveyhub/internal/registration"
)

// RegistrationStore mirrors the postgres registration semantics in memory.
// It backs service and handler tests, including spy-style assertions on how
// often the persistence layer was touched.
type RegistrationStore struct {
	mu sync.Mutex

	surveys     map[int64]string
	departments map[int64][]department.MessageTemplate
	tokens      map[int64]map[string]bool
	xids        map[string]bool

	Respondents []respondent.Respondent
	Subjects    []subject.Subject
	Messages    []message.Message

	// CreateCalls counts CreateRegistration invocations, including failed
	// ones, so tests can assert "no persistence attempt was made".
	CreateCalls int

	// FailNextWith, when set, is returned by the next CreateRegistration
	// call and then cleared.
	FailNextWith error
}

func NewRegistrationStore() *RegistrationStore {
	return &RegistrationStore{
		surveys:     make(map[int64]string),
		departments: make(map[int64][]department.MessageTemplate),
		tokens:      make(map[int64]map[string]bool),
		xids:        make(map[string]bool),
	}
}

func (s *RegistrationStore) AddSurvey(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.surveys[id] = name
	if s.tokens[id] == nil {
		s.tokens[id] = make(map[string]bool)
	}
}

func (s *RegistrationStore) AddDepartment(id int64, tpls ...department.MessageTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.departments[id] = tpls
}

// SeedToken marks a token as taken, for collision tests.
func (s *RegistrationStore) SeedToken(surveyID int64, tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens[surveyID] == nil {
		s.tokens[surveyID] = make(map[string]bool)
	}
	s.tokens[surveyID][tok] = true
}

func (s *RegistrationStore) TokenExists(_ context.Context, surveyID int64, tok string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.surveys[surveyID]; !ok {
		return false, survey.ErrNotFound
	}

	return s.tokens[surveyID][tok], nil
}

func (s *RegistrationStore) CreateRegistration(_ context.Context, resp respondent.Respondent, sub subject.Subject) (registration.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CreateCalls++

	if s.FailNextWith != nil {
		err := s.FailNextWith
		s.FailNextWith = nil
		return registration.Result{}, err
	}

	surveyName, ok := s.surveys[resp.SurveyID]
	if !ok {
		return registration.Result{}, survey.ErrNotFound
	}

	tpls, ok := s.departments[sub.DepartmentID]
	if !ok {
		return registration.Result{}, department.ErrNotFound
	}

	if s.tokens[resp.SurveyID][resp.Token] {
		return registration.Result{}, respondent.ErrTokenTaken
	}

	if sub.ExternalID != nil {
		key := fmt.Sprintf("%d:%s", sub.DepartmentID, *sub.ExternalID)
		if s.xids[key] {
			return registration.Result{}, subject.ErrExternalIDExists
		}
		s.xids[key] = true
	}

	msgs := make([]message.Message, 0, len(tpls))

	for _, tpl := range tpls {
		m, err := message.NewFromTemplate(tpl, sub, resp.Token, surveyName, time.Now().UTC())
		if err != nil {
			if errors.Is(err, message.ErrNoRecipient) {
				continue
			}
			return registration.Result{}, err
		}
		msgs = append(msgs, m)
	}

	s.tokens[resp.SurveyID][resp.Token] = true
	s.Respondents = append(s.Respondents, resp)
	s.Subjects = append(s.Subjects, sub)
	s.Messages = append(s.Messages, msgs...)

	return registration.Result{
		SubjectID:    sub.ID,
		RespondentID: resp.ID,
		Token:        resp.Token,
	}, nil
}
