package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openjudge-dev/openjudge/internal/config"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"go.uber.org/zap"
)

// languageIDs maps our language enum to the execution provider's integer ids.
var languageIDs = map[models.Language]int{
	models.LanguagePython:     71,
	models.LanguageJava:       62,
	models.LanguageCPP:        54,
	models.LanguageJavaScript: 63,
	models.LanguageC:          50,
}

// LanguageID returns the provider id for a language, defaulting to Python.
func LanguageID(lang models.Language) int {
	if id, ok := languageIDs[lang]; ok {
		return id
	}
	return languageIDs[models.LanguagePython]
}

// ExecRequest is one execution unit: one piece of code against one input.
type ExecRequest struct {
	Code             string
	Language         models.Language
	Stdin            string
	ExpectedOutput   string
	CPUTimeLimitSecs float64
	MemoryLimitKB    int
}

// RawResult is the provider's submission result as received on the wire.
// Time and Memory are deliberately untyped: the upstream sends them as a
// string, a number, or null depending on the run.
type RawResult struct {
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Time          any    `json:"time"`
	Memory        any    `json:"memory"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Message       string `json:"message"`
}

// Executor is what the judging engine depends on; Client is the real one.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (*RawResult, error)
}

// Client talks to a Judge0-compatible execution service: it submits one unit
// asynchronously, then polls the returned token until a terminal status.
type Client struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
	maxPolls     int
}

func NewClient(cfg config.Sandbox) *Client {
	return &Client{
		baseURL:      cfg.URL,
		http:         &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSecs) * time.Second},
		pollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		maxPolls:     cfg.MaxPollRetries,
	}
}

type submitPayload struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin"`
	ExpectedOutput string  `json:"expected_output"`
	CPUTimeLimit   float64 `json:"cpu_time_limit"`
	MemoryLimit    int     `json:"memory_limit"`
}

// Execute submits the unit and waits for its terminal result. Every failure
// mode (transport error, rejected submission, poll budget exhausted) comes
// back as an error; the caller decides how to degrade.
func (c *Client) Execute(ctx context.Context, req ExecRequest) (*RawResult, error) {
	token, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.awaitResult(ctx, token)
}

func (c *Client) submit(ctx context.Context, req ExecRequest) (string, error) {
	payload := submitPayload{
		SourceCode:     req.Code,
		LanguageID:     LanguageID(req.Language),
		Stdin:          req.Stdin,
		ExpectedOutput: req.ExpectedOutput,
		CPUTimeLimit:   req.CPUTimeLimitSecs,
		MemoryLimit:    req.MemoryLimitKB,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/submissions?base64_encoded=false&wait=false", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sandbox submission failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("sandbox rejected submission: %d %s", resp.StatusCode, string(snippet))
	}

	var created struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("sandbox submission response malformed: %w", err)
	}
	if created.Token == "" {
		return "", fmt.Errorf("sandbox submission response missing token")
	}
	return created.Token, nil
}

func (c *Client) awaitResult(ctx context.Context, token string) (*RawResult, error) {
	url := fmt.Sprintf("%s/submissions/%s?base64_encoded=false", c.baseURL, token)

	for i := 0; i < c.maxPolls; i++ {
		result, err := c.fetch(ctx, url)
		if err != nil {
			zap.S().Warnf("sandbox poll %d for token %s failed: %v", i+1, token, err)
		} else if result.Status.ID != statusInQueue && result.Status.ID != statusProcessing {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return nil, fmt.Errorf("sandbox result for token %s not ready after %d polls", token, c.maxPolls)
}

func (c *Client) fetch(ctx context.Context, url string) (*RawResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var result RawResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
