// Package qbittorrent is a minimal client for the qBittorrent Web API v2,
// covering authentication and the global transfer limits.
package qbittorrent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrLoginFailed is returned when qBittorrent rejects the credentials
	// or has banned the client IP after repeated failures.
	ErrLoginFailed = errors.New("qbittorrent login failed")

	// ErrForbidden is returned when a call is made without a valid session.
	ErrForbidden = errors.New("qbittorrent session not authorized")
)

const (
	defaultTimeout = 10 * time.Second

	loginPath  = "/api/v2/auth/login"
	logoutPath = "/api/v2/auth/logout"

	// Responses larger than this are not valid answers for the endpoints
	// used here.
	maxBodyBytes = 64 * 1024
)

// Config describes a qBittorrent Web UI endpoint.
type Config struct {
	URL      string
	Username string
	Password string

	// HTTPClient supplies the transport and timeout; a cookie jar is always
	// attached so the SID cookie survives between calls.
	HTTPClient *http.Client
}

// Client talks to one qBittorrent instance.
type Client struct {
	baseURL  *url.URL
	username string
	password string
	http     *http.Client
}

// New validates cfg and builds a client. It does not contact the server.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if raw == "" {
		return nil, errors.New("qbittorrent url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid qbittorrent url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: defaultTimeout, Jar: jar}
	if cfg.HTTPClient != nil {
		httpClient.Transport = cfg.HTTPClient.Transport
		httpClient.Timeout = cfg.HTTPClient.Timeout
	}

	return &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		http:     httpClient,
	}, nil
}

// Login authenticates and stores the session cookie.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"username": []string{c.username},
		"password": []string{c.password},
	}

	status, body, err := c.do(ctx, http.MethodPost, loginPath, form)
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: client IP is banned for too many failed attempts", ErrLoginFailed)
	case status != http.StatusOK:
		return fmt.Errorf("%w: unexpected status %d", ErrLoginFailed, status)
	case strings.TrimSpace(body) != "Ok.":
		return fmt.Errorf("%w: invalid username or password", ErrLoginFailed)
	}
	return nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodPost, logoutPath, nil)
	return err
}

// SpeedLimitsMode reports whether alternative speed limits are active.
func (c *Client) SpeedLimitsMode(ctx context.Context) (bool, error) {
	body, err := c.call(ctx, http.MethodGet, "/api/v2/transfer/speedLimitsMode", nil)
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(body) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected speedLimitsMode answer %q", body)
	}
}

// ToggleSpeedLimitsMode flips alternative speed limits on or off.
func (c *Client) ToggleSpeedLimitsMode(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodPost, "/api/v2/transfer/toggleSpeedLimitsMode", nil)
	return err
}

// SetUploadLimit sets the global upload limit in bytes per second; 0 removes it.
func (c *Client) SetUploadLimit(ctx context.Context, bytesPerSecond int64) error {
	return c.setLimit(ctx, "/api/v2/transfer/setUploadLimit", bytesPerSecond)
}

// SetDownloadLimit sets the global download limit in bytes per second; 0 removes it.
func (c *Client) SetDownloadLimit(ctx context.Context, bytesPerSecond int64) error {
	return c.setLimit(ctx, "/api/v2/transfer/setDownloadLimit", bytesPerSecond)
}

func (c *Client) setLimit(ctx context.Context, path string, bytesPerSecond int64) error {
	if bytesPerSecond < 0 {
		return fmt.Errorf("limit must not be negative, got %d", bytesPerSecond)
	}
	form := url.Values{"limit": []string{strconv.FormatInt(bytesPerSecond, 10)}}
	_, err := c.call(ctx, http.MethodPost, path, form)
	return err
}

// call performs an authenticated request and maps non-200 answers to errors.
// qBittorrent drops idle sessions (3600s by default), so a 403 triggers one
// login and one retry of the request.
func (c *Client) call(ctx context.Context, method, path string, form url.Values) (string, error) {
	status, body, err := c.do(ctx, method, path, form)
	if err != nil {
		return "", err
	}
	if status == http.StatusForbidden && path != logoutPath {
		if loginErr := c.Login(ctx); loginErr != nil {
			return "", fmt.Errorf("%s: %w: %w", path, ErrForbidden, loginErr)
		}
		status, body, err = c.do(ctx, method, path, form)
		if err != nil {
			return "", err
		}
	}
	switch status {
	case http.StatusOK:
		return body, nil
	case http.StatusForbidden:
		return "", fmt.Errorf("%s: %w", path, ErrForbidden)
	default:
		return "", fmt.Errorf("%s: unexpected status %d", path, status)
	}
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) (int, string, error) {
	endpoint := c.baseURL.JoinPath(path)

	var payload io.Reader
	if method == http.MethodPost {
		payload = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), payload)
	if err != nil {
		return 0, "", err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	// qBittorrent rejects requests whose Referer/Origin does not match the
	// Web UI host when CSRF protection is on.
	req.Header.Set("Referer", c.baseURL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read %s response: %w", path, err)
	}
	return resp.StatusCode, string(data), nil
}
