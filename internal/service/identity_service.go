package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"nia/internal/models"
	"nia/internal/tutor"
	"nia/internal/validation"
)

// TutorClient is the part of the tutoring service the flows depend on
type TutorClient interface {
	CreateStudent(ctx context.Context, profile models.StudentProfile) (*tutor.CreateStudentResponse, error)
	Chat(ctx context.Context, studentID, message string) (*tutor.ChatResponse, error)
	Greet(ctx context.Context, studentID string) error
}

// StudentIDMailer sends a new Student ID to a grown-up
type StudentIDMailer interface {
	IsEnabled() bool
	SendStudentIDEmail(ctx context.Context, toEmail, studentName, studentID string) error
}

// RegistrationForm is what a new student fills in
type RegistrationForm struct {
	Name            string
	Age             int
	Grade           int
	StepByStep      bool
	VisualLearner   bool
	LiteralLanguage bool
	FavoriteTopic   string
	ReadingChoice   models.ReadingChoice
	GrownUpEmail    string
}

// Validate checks the form before anything is sent
func (f RegistrationForm) Validate() error {
	if err := validation.ValidateName(f.Name); err != nil {
		return err
	}
	if err := validation.ValidateRange("age", f.Age, models.MinAge, models.MaxAge); err != nil {
		return err
	}
	if err := validation.ValidateRange("grade", f.Grade, models.MinGrade, models.MaxGrade); err != nil {
		return err
	}
	if email := strings.TrimSpace(f.GrownUpEmail); email != "" {
		if err := validation.ValidateEmail(email); err != nil {
			return err
		}
	}
	return nil
}

// BuildProfile turns the form into the record sent to the tutoring service
func BuildProfile(form RegistrationForm) models.StudentProfile {
	needs := []string{}
	if form.StepByStep {
		needs = append(needs, models.NeedAutism, models.NeedStepByStep, models.NeedClearCommunication)
	}
	if form.VisualLearner {
		needs = append(needs, models.NeedVisualLearner)
	}
	if form.LiteralLanguage {
		needs = append(needs, models.NeedLiteralLanguagePreference)
	}

	interests := append([]string{}, models.DefaultInterests...)
	if topic := strings.ToLower(strings.TrimSpace(form.FavoriteTopic)); topic != "" {
		interests = append(interests, topic)
	}

	return models.StudentProfile{
		Name:         strings.TrimSpace(form.Name),
		Age:          form.Age,
		Grade:        form.Grade,
		SpecialNeeds: needs,
		Interests:    interests,
		ReadingLevel: readingLevel(form.Grade, form.ReadingChoice),
	}
}

func readingLevel(grade int, choice models.ReadingChoice) int {
	switch choice {
	case models.ReadingEasier:
		return max(models.MinReadingLevel, grade-1)
	case models.ReadingHarder:
		return min(models.MaxReadingLevel, grade+1)
	default:
		return grade
	}
}

// RegistrationResult is shown on the confirmation page
type RegistrationResult struct {
	StudentID string
	Name      string
	Message   string
	EmailSent bool
}

// IdentityService registers and logs in students
type IdentityService struct {
	tutor    TutorClient
	sessions *SessionService
	mailer   StudentIDMailer
}

// NewIdentityService creates a new identity service. mailer may be nil.
func NewIdentityService(tutorClient TutorClient, sessions *SessionService, mailer StudentIDMailer) *IdentityService {
	return &IdentityService{
		tutor:    tutorClient,
		sessions: sessions,
		mailer:   mailer,
	}
}

// Register creates a student with the tutoring service and logs them in.
// The session is left untouched on any failure.
func (s *IdentityService) Register(ctx context.Context, session *models.Session, form RegistrationForm) (*RegistrationResult, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	profile := BuildProfile(form)
	resp, err := s.tutor.CreateStudent(ctx, profile)
	if err != nil {
		return nil, registrationError(err)
	}
	if !resp.Success || strings.TrimSpace(resp.StudentID) == "" {
		msg := "Error: registration was not accepted"
		if resp.Message != "" {
			msg = "Error: " + resp.Message
		}
		return nil, &FlowError{Message: msg, Err: ErrRegistrationRejected}
	}

	studentID := strings.TrimSpace(resp.StudentID)
	session.SetIdentity(studentID, profile.Name)
	session.LastError = ""
	if err := s.sessions.Save(ctx, session, EventIdentity); err != nil {
		session.ClearIdentity()
		return nil, err
	}

	log.Printf("Registered student %s", studentID)

	result := &RegistrationResult{
		StudentID: studentID,
		Name:      profile.Name,
		Message:   resp.Message,
	}

	if email := strings.TrimSpace(form.GrownUpEmail); email != "" && s.mailer != nil && s.mailer.IsEnabled() {
		if err := s.mailer.SendStudentIDEmail(ctx, email, profile.Name, studentID); err != nil {
			log.Printf("Warning: failed to email Student ID for %s: %v", studentID, err)
		} else {
			result.EmailSent = true
		}
	}

	return result, nil
}

// Login checks a Student ID with the tutoring service and logs the student in
func (s *IdentityService) Login(ctx context.Context, session *models.Session, studentID string) error {
	studentID = strings.TrimSpace(studentID)
	if err := validation.ValidateStudentID(studentID); err != nil {
		return err
	}

	if err := s.tutor.Greet(ctx, studentID); err != nil {
		var statusErr *tutor.StatusError
		if errors.As(err, &statusErr) {
			return &FlowError{Message: msgLoginNotFound, Err: err}
		}
		return &FlowError{Message: "Login failed: " + transportDetail(err), Err: err}
	}

	session.SetIdentity(studentID, models.GenericStudentName)
	session.LastError = ""
	if err := s.sessions.Save(ctx, session, EventIdentity); err != nil {
		session.ClearIdentity()
		return err
	}

	log.Printf("Student %s logged in", studentID)
	return nil
}

func registrationError(err error) error {
	var statusErr *tutor.StatusError
	if errors.As(err, &statusErr) {
		return &FlowError{
			Message: fmt.Sprintf("Error: %d - %s", statusErr.StatusCode, statusErr.Body),
			Err:     err,
		}
	}
	return &FlowError{Message: "Connection error: " + transportDetail(err), Err: err}
}

// transportDetail strips the transport sentinel prefix from err's text
func transportDetail(err error) string {
	return strings.TrimPrefix(err.Error(), tutor.ErrTransport.Error()+": ")
}
