// Package tutor is the HTTP client for the remote tutoring service that
// creates students and answers chat messages.
package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"nia/internal/models"
)

const (
	// GreetingMessage is sent to verify a returning student's ID
	GreetingMessage = "Hi Nia!"

	DefaultIdentityTimeout = 10 * time.Second
	DefaultChatTimeout     = 30 * time.Second

	maxErrorBodyBytes = 512
)

// ErrTransport wraps timeouts, connection errors and unreadable responses
var ErrTransport = errors.New("tutor: transport failure")

// StatusError is returned when the service answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tutor: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("tutor: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Config holds tutoring client settings
type Config struct {
	BaseURL         string
	IdentityTimeout time.Duration
	ChatTimeout     time.Duration
	// HTTPClient overrides the default client, e.g. one that adds OAuth2 tokens
	HTTPClient *http.Client
	Debug      bool
}

// CreateStudentResponse is the body of a successful POST /students/create
type CreateStudentResponse struct {
	Success   bool   `json:"success"`
	StudentID string `json:"student_id"`
	Message   string `json:"message"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message   string `json:"message"`
	StudentID string `json:"student_id,omitempty"`
}

// ChatResponse is the body of a successful POST /chat. Response is nil when
// the field was absent.
type ChatResponse struct {
	Response *string `json:"response"`
}

// Client talks to the remote tutoring service
type Client struct {
	baseURL         string
	identityTimeout time.Duration
	chatTimeout     time.Duration
	httpClient      *http.Client
	debug           bool
}

// NewClient creates a new tutoring client
func NewClient(cfg Config) *Client {
	if cfg.IdentityTimeout <= 0 {
		cfg.IdentityTimeout = DefaultIdentityTimeout
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = DefaultChatTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: max(cfg.IdentityTimeout, cfg.ChatTimeout)}
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		identityTimeout: cfg.IdentityTimeout,
		chatTimeout:     cfg.ChatTimeout,
		httpClient:      httpClient,
		debug:           cfg.Debug,
	}
}

// CreateStudent registers a new student profile
func (c *Client) CreateStudent(ctx context.Context, profile models.StudentProfile) (*CreateStudentResponse, error) {
	var resp CreateStudentResponse
	if err := c.post(ctx, "/students/create", c.identityTimeout, profile, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat sends one message on behalf of a student
func (c *Client) Chat(ctx context.Context, studentID, message string) (*ChatResponse, error) {
	var resp ChatResponse
	req := ChatRequest{Message: message, StudentID: studentID}
	if err := c.post(ctx, "/chat", c.chatTimeout, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Greet sends the canned greeting used to check that a student ID exists.
// The reply body is discarded.
func (c *Client) Greet(ctx context.Context, studentID string) error {
	req := ChatRequest{Message: GreetingMessage, StudentID: studentID}
	return c.post(ctx, "/chat", c.identityTimeout, req, nil)
}

// post sends a JSON body and decodes a 2xx JSON reply into out (if non-nil)
func (c *Client) post(ctx context.Context, path string, timeout time.Duration, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.debug {
		log.Printf("[DEBUG] tutor POST %s (%d bytes, timeout %s)", path, len(payload), timeout)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	if c.debug {
		log.Printf("[DEBUG] tutor POST %s -> %d in %s", path, resp.StatusCode, time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(respBody))
		if len(text) > maxErrorBodyBytes {
			// Drop a rune cut in half by the limit
			text = strings.ToValidUTF8(text[:maxErrorBodyBytes], "")
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: text}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrTransport, err)
	}
	return nil
}
