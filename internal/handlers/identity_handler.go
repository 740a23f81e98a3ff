package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nia/internal/models"
	"nia/internal/service"
	"nia/internal/validation"
)

// IdentityHandler serves the welcome page and the register/login forms
type IdentityHandler struct {
	identity     *service.IdentityService
	sessions     *service.SessionService
	middleware   *Middleware
	templates    *Templates
	settleDelay  time.Duration
	emailEnabled bool
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(identity *service.IdentityService, sessions *service.SessionService, middleware *Middleware, templates *Templates, settleDelay time.Duration, emailEnabled bool) *IdentityHandler {
	return &IdentityHandler{
		identity:     identity,
		sessions:     sessions,
		middleware:   middleware,
		templates:    templates,
		settleDelay:  settleDelay,
		emailEnabled: emailEnabled,
	}
}

// Home shows the register/login tabs, or the chat for a logged-in student
func (h *IdentityHandler) Home(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session.HasIdentity() {
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
		return
	}

	data := newWelcomeViewData(h.middleware.CSRFToken(r), h.emailEnabled)
	if r.URL.Query().Get("tab") == tabLogin {
		data.ActiveTab = tabLogin
	}
	h.renderWelcome(w, http.StatusOK, data)
}

// Register handles the new student form
func (h *IdentityHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "Error parsing registration form", err)
		return
	}

	session := GetSessionFromContext(r.Context())
	formView := RegisterFormView{
		Name:            strings.TrimSpace(r.FormValue("name")),
		Age:             formInt(r, "age"),
		Grade:           formInt(r, "grade"),
		StepByStep:      formBool(r, "step_by_step"),
		VisualLearner:   formBool(r, "visual_learner"),
		LiteralLanguage: formBool(r, "literal_language"),
		FavoriteTopic:   strings.TrimSpace(r.FormValue("favorite_topic")),
		ReadingChoice:   r.FormValue("reading_level"),
		GrownUpEmail:    strings.TrimSpace(r.FormValue("grown_up_email")),
	}

	result, err := h.identity.Register(r.Context(), session, service.RegistrationForm{
		Name:            formView.Name,
		Age:             formView.Age,
		Grade:           formView.Grade,
		StepByStep:      formView.StepByStep,
		VisualLearner:   formView.VisualLearner,
		LiteralLanguage: formView.LiteralLanguage,
		FavoriteTopic:   formView.FavoriteTopic,
		ReadingChoice:   models.ReadingChoice(formView.ReadingChoice),
		GrownUpEmail:    formView.GrownUpEmail,
	})
	if err != nil {
		data := newWelcomeViewData(h.middleware.CSRFToken(r), h.emailEnabled)
		data.Form = formView
		data.RegisterError = service.UserMessage(err)
		h.renderWelcome(w, statusFor(err), data)
		return
	}

	target := "/registered"
	if result.EmailSent {
		target += "?emailed=1"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// ShowRegistered shows the new Student ID, then moves on to the chat
func (h *IdentityHandler) ShowRegistered(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())

	data := RegisteredViewData{
		Title:         appTitle,
		StudentName:   session.StudentName,
		StudentID:     session.StudentID,
		EmailSent:     r.URL.Query().Get("emailed") == "1",
		RedirectAfter: int(h.settleDelay.Round(time.Second) / time.Second),
	}

	if err := h.templates.ExecuteTemplate(w, "registered.tmpl", data); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error rendering registered template", err)
	}
}

// Login handles the returning student form
func (h *IdentityHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "Error parsing login form", err)
		return
	}

	session := GetSessionFromContext(r.Context())
	studentID := r.FormValue("student_id")

	if err := h.identity.Login(r.Context(), session, studentID); err != nil {
		data := newWelcomeViewData(h.middleware.CSRFToken(r), h.emailEnabled)
		data.ActiveTab = tabLogin
		data.StudentIDInput = strings.TrimSpace(studentID)
		data.LoginError = service.UserMessage(err)
		h.renderWelcome(w, statusFor(err), data)
		return
	}

	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// SwitchStudent logs the student out of this browser
func (h *IdentityHandler) SwitchStudent(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if err := h.sessions.SwitchStudent(r.Context(), session); err != nil {
		if errors.Is(err, service.ErrRequestInFlight) {
			respondBusy(w, r)
			return
		}
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error switching student", err)
		return
	}

	if wantsJSON(r) {
		respondJSON(w, http.StatusOK, newChatState(session))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *IdentityHandler) renderWelcome(w http.ResponseWriter, status int, data WelcomeViewData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "welcome.tmpl", data); err != nil {
		log.Printf("Error rendering welcome template: %v", err)
	}
}

// statusFor maps a flow error to the status of the page showing it
func statusFor(err error) int {
	var ve validation.ValidationError
	var fe *service.FlowError
	switch {
	case errors.As(err, &ve), errors.Is(err, service.ErrEmptyMessage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNoStudent):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrRequestInFlight):
		return http.StatusConflict
	case errors.As(err, &fe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func formInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(key)))
	if err != nil {
		return 0
	}
	return n
}

func formBool(r *http.Request, key string) bool {
	switch r.FormValue(key) {
	case "on", "true", "1":
		return true
	default:
		return false
	}
}
