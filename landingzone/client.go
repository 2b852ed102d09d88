package landingzone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

var _ API = (*Client)(nil)

// Client is a JSON over HTTP client for the landing zone API.
type Client struct {
	server  string
	headers map[string]string
	logger  *slog.Logger
	client  *http.Client
}

// NewClient creates a client for the service at server, authenticating with token.
func NewClient(server, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		server:  strings.TrimRight(server, "/"),
		headers: make(map[string]string, 4),
		logger:  logger,
		client:  http.DefaultClient,
	}
	c.SetHeader("Accept", "application/json")
	if token != "" {
		c.SetHeader("Authorization", "token "+token)
	}
	return c
}

// SetClient configures a custom http client for doing requests
func (c *Client) SetClient(client *http.Client) {
	c.client = client
}

// SetHeader configures a header to be sent with all requests
func (c *Client) SetHeader(name, value string) {
	c.headers[name] = value
}

// Server returns the server
func (c *Client) Server() string {
	return c.server
}

func (c *Client) request(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s/%s", c.server, endpoint), rdr)
	if err != nil {
		return nil, err
	}
	for hdr := range c.headers {
		req.Header.Set(hdr, c.headers[hdr])
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends the request and decodes a JSON answer into out when out is not nil.
func (c *Client) do(req *http.Request, what string, out any) error {
	c.logger.Debug("landingzone.Client: request", "method", req.Method, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error requesting %s: %w", what, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Continue
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", what, ErrUnauthorized)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s: status %d: %w", what, resp.StatusCode, ErrServerError)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d requesting %s: %s", resp.StatusCode, what, bytes.TrimSpace(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding %s: %w", what, err)
	}
	return nil
}

// ListLandingZones lists the zones of a project. A non-empty assay keeps only
// the zones of that assay.
func (c *Client) ListLandingZones(ctx context.Context, project, assay string) ([]LandingZone, error) {
	req, err := c.request(ctx, http.MethodGet, "landingzones/api/list/"+url.PathEscape(project), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	var zones []LandingZone
	if err := c.do(req, "landing zones", &zones); err != nil {
		return nil, err
	}
	if assay == "" {
		return zones, nil
	}

	filtered := zones[:0]
	for _, z := range zones {
		if z.Assay == assay {
			filtered = append(filtered, z)
		}
	}
	return filtered, nil
}

// GetLandingZone retrieves one zone.
func (c *Client) GetLandingZone(ctx context.Context, uuid string) (LandingZone, error) {
	req, err := c.request(ctx, http.MethodGet, "landingzones/api/retrieve/"+url.PathEscape(uuid), nil)
	if err != nil {
		return LandingZone{}, fmt.Errorf("error creating request: %w", err)
	}

	var zone LandingZone
	err = c.do(req, "landing zone", &zone)
	return zone, err
}

type createRequest struct {
	Assay       string `json:"assay,omitempty"`
	Description string `json:"description"`
}

// CreateLandingZone requests a new zone for a project and optional assay.
func (c *Client) CreateLandingZone(ctx context.Context, project, assay string) (LandingZone, error) {
	req, err := c.request(ctx, http.MethodPost, "landingzones/api/create/"+url.PathEscape(project), createRequest{
		Assay:       assay,
		Description: "created by lzstage",
	})
	if err != nil {
		return LandingZone{}, fmt.Errorf("error creating request: %w", err)
	}

	var zone LandingZone
	err = c.do(req, "landing zone creation", &zone)
	return zone, err
}

// SubmitValidateAndMove asks the service to validate the staged files and
// move them into the archive.
func (c *Client) SubmitValidateAndMove(ctx context.Context, uuid string) error {
	req, err := c.request(ctx, http.MethodPost, "landingzones/api/submit/move/"+url.PathEscape(uuid), nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	return c.do(req, "validate and move", nil)
}
