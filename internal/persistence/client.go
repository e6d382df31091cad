// Package persistence is the HTTP client for the report service. Success
// responses arrive as {"data": T}, failures as {"message": string} with a
// non-2xx status.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rapport/internal/domain"
)

// Client talks to the report persistence API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Now        func() time.Time
	// OnAuthExpired runs once per rejected credential so the owner can clear
	// the stored session.
	OnAuthExpired func()
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		Timeout: 10 * time.Second,
	}
}

// FetchReport returns the group's report with sections, or ErrNotFound.
func (c *Client) FetchReport(ctx context.Context, projectID, groupID string) (domain.Report, error) {
	var rep domain.Report
	err := c.do(ctx, http.MethodGet, c.groupPath(projectID, groupID), nil, &rep)
	return rep, err
}

// CreateReport creates the single report for a (project, group) pair.
func (c *Client) CreateReport(ctx context.Context, projectID, groupID string, in domain.NewReport) (domain.Report, error) {
	var rep domain.Report
	err := c.do(ctx, http.MethodPost, c.groupPath(projectID, groupID), in, &rep)
	return rep, err
}

// UpdateReport patches report content fields; the server rejects it with 409
// once the report left draft.
func (c *Client) UpdateReport(ctx context.Context, reportID string, patch domain.ReportPatch) (domain.Report, error) {
	var rep domain.Report
	endpoint := fmt.Sprintf("v1/reports/%s", url.PathEscape(reportID))
	err := c.do(ctx, http.MethodPatch, endpoint, patch, &rep)
	return rep, err
}

// CreateSection appends a section to the report.
func (c *Client) CreateSection(ctx context.Context, reportID string, in domain.NewSection) (domain.Section, error) {
	var sec domain.Section
	endpoint := fmt.Sprintf("v1/reports/%s/sections", url.PathEscape(reportID))
	err := c.do(ctx, http.MethodPost, endpoint, in, &sec)
	return sec, err
}

// UpdateSection patches a section.
func (c *Client) UpdateSection(ctx context.Context, sectionID string, patch domain.SectionPatch) (domain.Section, error) {
	var sec domain.Section
	endpoint := fmt.Sprintf("v1/sections/%s", url.PathEscape(sectionID))
	err := c.do(ctx, http.MethodPatch, endpoint, patch, &sec)
	return sec, err
}

// DeleteSection removes a section.
func (c *Client) DeleteSection(ctx context.Context, sectionID string) error {
	endpoint := fmt.Sprintf("v1/sections/%s", url.PathEscape(sectionID))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// SubmitReport requests the draft -> submitted transition.
func (c *Client) SubmitReport(ctx context.Context, reportID string) (domain.Report, error) {
	var rep domain.Report
	endpoint := fmt.Sprintf("v1/reports/%s/submit", url.PathEscape(reportID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &rep)
	return rep, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if err := c.checkToken(); err != nil {
		return err
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NetworkError{Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return c.decodeError(resp)
	}
	if out != nil {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// decodeError maps the API error envelope onto the engine's taxonomy.
func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	msg := strings.TrimSpace(string(raw))
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		msg = env.Message
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if c.OnAuthExpired != nil {
			c.OnAuthExpired()
		}
		return AuthError{Message: msg}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case resp.StatusCode == http.StatusConflict:
		return domain.ConflictError{Message: msg}
	default:
		return ServerError{StatusCode: resp.StatusCode, Message: msg}
	}
}

// checkToken fails fast when the bearer token is a JWT that already expired,
// skipping the doomed round trip. Opaque tokens pass through untouched.
func (c *Client) checkToken() error {
	if c.Token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if exp.Before(now()) {
		if c.OnAuthExpired != nil {
			c.OnAuthExpired()
		}
		return AuthError{Message: "credential expired; sign in again"}
	}
	return nil
}

func (c *Client) groupPath(projectID, groupID string) string {
	return fmt.Sprintf("v1/projects/%s/groups/%s/report",
		url.PathEscape(projectID), url.PathEscape(groupID))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
