package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nia/internal/models"
	"nia/internal/repository"
	"nia/internal/security"
	"nia/internal/service"
	"nia/internal/tutor"
)

type stubTutor struct {
	mu sync.Mutex

	createResp *tutor.CreateStudentResponse
	createErr  error
	chatReply  *string
	chatErr    error
	greetErr   error

	block   chan struct{}
	entered chan struct{}
}

func (s *stubTutor) CreateStudent(ctx context.Context, profile models.StudentProfile) (*tutor.CreateStudentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.createResp, nil
}

func (s *stubTutor) Chat(ctx context.Context, studentID, message string) (*tutor.ChatResponse, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	return &tutor.ChatResponse{Response: s.chatReply}, nil
}

func (s *stubTutor) Greet(ctx context.Context, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.greetErr
}

func strPtr(s string) *string { return &s }

// testApp is the full route table on an httptest server
type testApp struct {
	server   *httptest.Server
	client   *http.Client
	repo     *repository.MemorySessionRepository
	hub      *service.Hub
	sessions *service.SessionService
	tutor    *stubTutor
	tokens   *security.SessionTokens
	csrf     *security.CSRFGenerator
	status   *StartupStatus
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	templates, err := LoadTemplates(os.DirFS("../templates"))
	require.NoError(t, err)

	repo := repository.NewMemorySessionRepository()
	hub := service.NewHub()
	sessions := service.NewSessionService(repo, hub, time.Hour, "session")
	st := &stubTutor{
		createResp: &tutor.CreateStudentResponse{Success: true, StudentID: "student_1_abc", Message: "Welcome!"},
		chatReply:  strPtr("Great question!"),
	}

	tokens := security.NewSessionTokens([]byte("test-session-key-0123456789abcdef"))
	csrf := security.NewCSRFGenerator([]byte("test-csrf-key-0123456789abcdef01"))
	limiter := security.NewRateLimiter(1000, time.Minute)
	t.Cleanup(limiter.Stop)

	mw := NewMiddleware(sessions, tokens, csrf, limiter, false)
	identityHandler := NewIdentityHandler(service.NewIdentityService(st, sessions, nil), sessions, mw, templates, 3*time.Second, false)
	chatHandler := NewChatHandler(service.NewChatService(st, sessions), sessions, mw, templates)
	eventsHandler := NewEventsHandler(hub, true)
	status := NewStartupStatus(StepSessionStore, StepTemplates)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", mw.LoadSession(identityHandler.Home))
	mux.HandleFunc("POST /register", mw.LoadSession(mw.CSRFProtect(mw.RateLimit(identityHandler.Register))))
	mux.HandleFunc("GET /registered", mw.RequireStudent(identityHandler.ShowRegistered))
	mux.HandleFunc("POST /login", mw.LoadSession(mw.CSRFProtect(mw.RateLimit(identityHandler.Login))))
	mux.HandleFunc("GET /chat", mw.RequireStudent(chatHandler.ShowChat))
	mux.HandleFunc("POST /chat", mw.RequireStudent(mw.CSRFProtect(mw.RateLimit(chatHandler.SendMessage))))
	mux.HandleFunc("GET /chat/state", mw.RequireStudent(chatHandler.State))
	mux.HandleFunc("POST /chat/new", mw.RequireStudent(mw.CSRFProtect(chatHandler.NewConversation)))
	mux.HandleFunc("POST /chat/topic/{topic}", mw.RequireStudent(mw.CSRFProtect(chatHandler.QuickTopic)))
	mux.HandleFunc("POST /student/switch", mw.LoadSession(mw.CSRFProtect(identityHandler.SwitchStudent)))
	mux.HandleFunc("GET /events", mw.LoadSession(eventsHandler.ServeHTTP))
	mux.HandleFunc("GET /healthz", status.Health)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testApp{
		server:   server,
		client:   client,
		repo:     repo,
		hub:      hub,
		sessions: sessions,
		tutor:    st,
		tokens:   tokens,
		csrf:     csrf,
		status:   status,
	}
}

// sessionID opens a session if needed and returns its ID
func (a *testApp) sessionID(t *testing.T) string {
	t.Helper()

	u, _ := url.Parse(a.server.URL)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == security.SessionCookieName {
			id, err := a.tokens.Parse(c.Value)
			require.NoError(t, err)
			return id
		}
	}

	resp := a.get(t, "/", nil)
	resp.Body.Close()
	return a.sessionID(t)
}

func (a *testApp) csrfToken(t *testing.T) string {
	t.Helper()

	token, err := a.csrf.GenerateToken(a.sessionID(t))
	require.NoError(t, err)
	return token
}

func (a *testApp) get(t *testing.T, path string, header http.Header) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := a.client.Do(req)
	require.NoError(t, err)
	return resp
}

// postForm submits a form with this session's CSRF token
func (a *testApp) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()

	if form == nil {
		form = url.Values{}
	}
	if form.Get(security.CSRFFieldName) == "" {
		form.Set(security.CSRFFieldName, a.csrfToken(t))
	}
	resp, err := a.client.PostForm(a.server.URL+path, form)
	require.NoError(t, err)
	return resp
}

// postJSON sends body as JSON with the CSRF header
func (a *testApp) postJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}

	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(security.CSRFHeaderName, a.csrfToken(t))

	resp, err := a.client.Do(req)
	require.NoError(t, err)
	return resp
}

// login logs the test browser in as an existing student
func (a *testApp) login(t *testing.T) {
	t.Helper()

	resp := a.postForm(t, "/login", url.Values{"student_id": {"student_1_abc"}})
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/chat", resp.Header.Get("Location"))
}

func (a *testApp) stored(t *testing.T) *models.Session {
	t.Helper()

	session, err := a.repo.Get(context.Background(), a.sessionID(t))
	require.NoError(t, err)
	require.NotNil(t, session)
	return session
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
