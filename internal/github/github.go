// Package github is a minimal read-only client for the GitHub REST API:
// enough to parse a repository URL, pull its recent commit history, and
// fetch its README for the story workflow.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Defaults for commit history fetches.
const (
	// DefaultWindow is how far back recent commits reach.
	DefaultWindow = 3 * 24 * time.Hour
	// DefaultCommitLimit caps how many commits one fetch returns.
	DefaultCommitLimit = 30
	// readmeExcerptLimit caps how much README text is returned.
	readmeExcerptLimit = 3000
	// messageLimit caps commit message length after first-line truncation.
	messageLimit = 100
)

// Sentinel errors.
var (
	// ErrBadURL indicates the input is not a usable GitHub repository URL.
	ErrBadURL = errors.New("not a valid GitHub repository URL")

	// ErrRepoNotFound indicates the repository does not exist or is
	// private.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRateLimited indicates GitHub declined the request for rate or
	// permission reasons.
	ErrRateLimited = errors.New("github rate limit or access denied")
)

// APIError reports an unexpected GitHub response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error (status %d): %s", e.StatusCode, e.Message)
}

// Commit is one entry of a repository's recent history.
type Commit struct {
	SHA     string
	Author  string
	Message string
	When    time.Time
}

// ParseRepoURL extracts "owner" and "repo" from a GitHub repository URL.
// Accepts https://github.com/owner/repo, with or without a trailing .git
// suffix or extra path segments.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	u, parseErr := url.Parse(strings.TrimSpace(raw))
	if parseErr != nil {
		return "", "", fmt.Errorf("%w: %s", ErrBadURL, raw)
	}
	host := strings.ToLower(u.Hostname())
	if host != "github.com" && host != "www.github.com" {
		return "", "", fmt.Errorf("%w: host must be github.com", ErrBadURL)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: missing owner or repository", ErrBadURL)
	}

	owner = parts[0]
	repo = strings.TrimSuffix(parts[1], ".git")
	if repo == "" {
		return "", "", fmt.Errorf("%w: missing repository", ErrBadURL)
	}
	return owner, repo, nil
}

// Client calls the GitHub REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL points the client at a different API root (tests).
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithToken authenticates requests, raising the rate limit.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a GitHub API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    "https://api.github.com",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// commitEnvelope mirrors the fields we need of the list-commits response.
type commitEnvelope struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// RecentCommits fetches commits since the given time, newest first, capped
// at limit. since zero means DefaultWindow back from now; limit <= 0 means
// DefaultCommitLimit. An empty repository yields an empty slice, not an
// error.
func (c *Client) RecentCommits(ctx context.Context, owner, repo string, since time.Time, limit int) ([]Commit, error) {
	if since.IsZero() {
		since = time.Now().UTC().Add(-DefaultWindow)
	}
	if limit <= 0 {
		limit = DefaultCommitLimit
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits?since=%s&per_page=%d",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo),
		url.QueryEscape(since.Format(time.RFC3339)), limit)

	body, err := c.get(ctx, endpoint, "application/vnd.github+json")
	if err != nil {
		var apiErr *APIError
		// 409 means the repository exists but has no commits yet.
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return nil, nil
		}
		return nil, err
	}

	var envelopes []commitEnvelope
	if err := json.Unmarshal(body, &envelopes); err != nil {
		return nil, fmt.Errorf("decode commits: %w", err)
	}

	commits := make([]Commit, 0, len(envelopes))
	for _, env := range envelopes {
		when, _ := time.Parse(time.RFC3339, env.Commit.Author.Date)
		commits = append(commits, Commit{
			SHA:     env.SHA,
			Author:  env.Commit.Author.Name,
			Message: firstLine(env.Commit.Message),
			When:    when,
		})
	}
	return commits, nil
}

// Readme fetches the repository README as text, truncated to a prompt-
// friendly excerpt. A missing README returns an empty string and no error;
// it is common enough not to treat as a failure.
func (c *Client) Readme(ctx context.Context, owner, repo string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/readme",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo))

	body, err := c.get(ctx, endpoint, "application/vnd.github.raw+json")
	if err != nil {
		if errors.Is(err, ErrRepoNotFound) {
			return "", nil
		}
		return "", err
	}

	return truncate(strings.TrimSpace(string(body)), readmeExcerptLimit), nil
}

// FormatCommits renders commits as a prompt-friendly block, one line per
// commit.
func FormatCommits(commits []Commit) string {
	var b strings.Builder
	for _, commit := range commits {
		author := commit.Author
		if author == "" {
			author = "unknown"
		}
		fmt.Fprintf(&b, "- %s (%s)\n", commit.Message, author)
	}
	return strings.TrimRight(b.String(), "\n")
}

// get performs one API request and maps GitHub's status codes onto the
// package's error taxonomy.
func (c *Client) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, ErrRepoNotFound
	case http.StatusForbidden, http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		c.logger.Debug("unexpected github response",
			slog.Int("status", resp.StatusCode),
			slog.String("endpoint", endpoint))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: trimMessage(body)}
	}
}

// firstLine truncates a commit message to its first line, capped at
// messageLimit bytes.
func firstLine(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return truncate(strings.TrimSpace(msg), messageLimit)
}

// truncate caps s at limit bytes without splitting a multi-byte rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func trimMessage(body []byte) string {
	return truncate(strings.TrimSpace(string(body)), 200)
}
