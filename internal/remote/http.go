package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/existflow/punch/internal/api"
	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/internal/record"
)

const httpTimeout = 30 * time.Second

// HTTP is a punch-server remote.
type HTTP struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTP returns a client for the server at baseURL authenticated with a
// session token.
func NewHTTP(baseURL, token string) *HTTP {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: httpTimeout})
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	client.Timeout = httpTimeout

	return &HTTP{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Register creates a new account and returns its first session.
func Register(ctx context.Context, baseURL string, creds api.Credentials) (api.Session, error) {
	return authenticate(ctx, baseURL, "/register", creds)
}

// Login authenticates with username and password.
func Login(ctx context.Context, baseURL string, creds api.Credentials) (api.Session, error) {
	return authenticate(ctx, baseURL, "/login", creds)
}

func authenticate(ctx context.Context, baseURL, route string, creds api.Credentials) (api.Session, error) {
	var session api.Session
	c := &HTTP{baseURL: strings.TrimRight(baseURL, "/"), httpClient: &http.Client{Timeout: httpTimeout}}
	if err := c.do(ctx, http.MethodPost, route, creds, &session); err != nil {
		return session, err
	}
	if session.Token == "" {
		return session, fmt.Errorf("server returned no token")
	}
	return session, nil
}

// Logout ends the session on the server.
func (c *HTTP) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// Me returns the logged in user.
func (c *HTTP) Me(ctx context.Context) (api.Me, error) {
	var me api.Me
	err := c.do(ctx, http.MethodGet, "/me", nil, &me)
	return me, err
}

func (c *HTTP) Manifest(ctx context.Context) (record.Manifest, error) {
	var resp api.ManifestResponse
	if err := c.do(ctx, http.MethodGet, "/manifest", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Manifest == nil {
		return record.Manifest{}, nil
	}
	return record.Manifest(resp.Manifest), nil
}

func (c *HTTP) Upload(ctx context.Context, records []record.Record) (record.UploadResult, error) {
	result := record.UploadResult{Failed: map[string]error{}}

	req := api.UploadRequest{Punches: make([]api.Punch, 0, len(records))}
	for _, rec := range records {
		req.Punches = append(req.Punches, api.Punch{ID: rec.ID, Updated: rec.Updated, Data: rec.Data})
	}

	var resp api.UploadResponse
	if err := c.do(ctx, http.MethodPost, "/punches", req, &resp); err != nil {
		return result, err
	}

	for _, a := range resp.Accepted {
		result.Accepted = append(result.Accepted, record.Stamp{ID: a.ID, Updated: a.Updated})
	}
	for _, f := range resp.Failed {
		result.Failed[f.ID] = fmt.Errorf("server rejected punch: %s", f.Error)
	}
	return result, nil
}

func (c *HTTP) Download(ctx context.Context, ids []string) (record.DownloadResult, error) {
	result := record.DownloadResult{Failed: map[string]error{}}

	var resp api.FetchResponse
	if err := c.do(ctx, http.MethodPost, "/punches/fetch", api.FetchRequest{IDs: ids}, &resp); err != nil {
		return result, err
	}

	for _, p := range resp.Punches {
		rec, err := record.Parse(p.Data)
		if err != nil {
			result.Failed[p.ID] = err
			continue
		}
		if rec.Updated != p.Updated {
			if rec, err = rec.WithUpdated(p.Updated); err != nil {
				result.Failed[p.ID] = err
				continue
			}
		}
		result.Records = append(result.Records, rec)
	}
	for _, id := range resp.Missing {
		result.Failed[id] = fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return result, nil
}

// do sends a JSON request to the API and decodes the JSON reply into out.
func (c *HTTP) do(ctx context.Context, method, route string, in, out any) error {
	url := c.baseURL + api.Prefix + route

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Debug("HTTP Request", logger.F("method", method), logger.F("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("HTTP request failed", logger.F("error", err), logger.F("url", url))
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	logger.Debug("HTTP Response", logger.F("status", resp.StatusCode), logger.F("url", url))

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrNotLoggedIn, readError(resp.Body))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, readError(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readError(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e api.Error
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}
