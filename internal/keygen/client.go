// Package keygen fetches license entitlements from a Keygen-compatible
// JSON:API license provider.
package keygen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openstatushq/entitlements/internal/license"
)

// DefaultTimeout bounds each request to the provider.
const DefaultTimeout = 30 * time.Second

// maxPages stops pagination loops on a misbehaving server.
const maxPages = 50

const mediaType = "application/vnd.api+json"

// ErrForeignLink is returned when a pagination link leaves the API origin.
var ErrForeignLink = errors.New("keygen: pagination link outside API origin")

// Credentials authenticate requests. LicenseKey is sent as
// "Authorization: License <key>"; Token as a bearer token. LicenseKey wins
// when both are set.
type Credentials struct {
	LicenseKey string
	Token      string
}

// Client implements license.EntitlementFetcher over HTTP.
type Client struct {
	baseURL    string
	accountID  string
	creds      Credentials
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ license.EntitlementFetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "keygen").Logger()
	}
}

// New creates a client for the account in cfg.
func New(cfg license.Config, creds Credentials, opts ...Option) (*Client, error) {
	if cfg.AccountID == "" {
		return nil, errors.New("keygen: account ID is required")
	}
	if cfg.APIURL == "" {
		return nil, errors.New("keygen: API URL is required")
	}
	if _, err := url.Parse(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("keygen: parse API URL: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		accountID:  cfg.AccountID,
		creds:      creds,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type entitlementList struct {
	Data []struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			Code     string                      `json:"code"`
			Metadata license.EntitlementMetadata `json:"metadata"`
		} `json:"attributes"`
	} `json:"data"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}

type errorDocument struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Code   string `json:"code"`
	} `json:"errors"`
}

// FetchEntitlements returns every entitlement attached to a license,
// following pagination links. A 404 yields license.ErrLicenseNotFound.
func (c *Client) FetchEntitlements(ctx context.Context, licenseID string) ([]license.RawEntitlement, error) {
	if licenseID == "" {
		return nil, errors.New("keygen: license ID is required")
	}

	next := fmt.Sprintf("%s/v1/accounts/%s/licenses/%s/entitlements?page%%5Bsize%%5D=100&page%%5Bnumber%%5D=1",
		c.baseURL, url.PathEscape(c.accountID), url.PathEscape(licenseID))

	records := []license.RawEntitlement{}
	for page := 0; next != ""; page++ {
		if page == maxPages {
			return nil, fmt.Errorf("keygen: more than %d pages of entitlements", maxPages)
		}

		var list entitlementList
		if err := c.get(ctx, next, &list); err != nil {
			return nil, err
		}
		for _, d := range list.Data {
			if d.Type != "" && d.Type != "entitlements" {
				continue
			}
			records = append(records, license.RawEntitlement{
				ID:       d.ID,
				Code:     d.Attributes.Code,
				Metadata: d.Attributes.Metadata,
			})
		}

		next = ""
		if list.Links.Next != nil && *list.Links.Next != "" {
			resolved, err := c.resolve(*list.Links.Next)
			if err != nil {
				return nil, err
			}
			next = resolved
		}
	}

	c.logger.Debug().Str("license_id", licenseID).Int("count", len(records)).Msg("fetched entitlements")
	return records, nil
}

// resolve turns a pagination link into an absolute URL. Links pointing
// outside the configured API origin are refused so credentials stay on it.
func (c *Client) resolve(link string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse pagination link: %w", err)
	}
	abs := base.ResolveReference(ref)
	if !strings.EqualFold(abs.Scheme, base.Scheme) || !strings.EqualFold(abs.Host, base.Host) {
		return "", fmt.Errorf("%w: %s://%s", ErrForeignLink, abs.Scheme, abs.Host)
	}
	return abs.String(), nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", mediaType)
	switch {
	case c.creds.LicenseKey != "":
		req.Header.Set("Authorization", "License "+c.creds.LicenseKey)
	case c.creds.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.creds.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return license.ErrLicenseNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("keygen: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("keygen: unexpected status %d: %s", e.StatusCode, e.Detail)
}

func errorDetail(body []byte) string {
	var doc errorDocument
	if err := json.Unmarshal(body, &doc); err != nil || len(doc.Errors) == 0 {
		return ""
	}
	e := doc.Errors[0]
	switch {
	case e.Detail != "" && e.Title != "":
		return e.Title + ": " + e.Detail
	case e.Detail != "":
		return e.Detail
	default:
		return e.Title
	}
}
