package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spec-kit/ticket-sla-engine/internal/config"
	apperrors "github.com/spec-kit/ticket-sla-engine/pkg/util"
)

// DefaultFields is the field projection requested on every fetch.
var DefaultFields = []string{
	"sys_id", "number", "short_description", "description",
	"category", "subcategory", "state", "priority", "impact", "urgency",
	"opened_at", "closed_at", "resolved_at", "sys_updated_on",
	"caller_id", "assigned_to", "assignment_group", "company", "location",
}

// Source is the stateless contract the sync coordinator depends on.
type Source interface {
	FetchPage(ctx context.Context, filter string, fields []string, limit, offset int) ([]Record, error)
	Probe(ctx context.Context) error
}

// Client talks to the remote ticketing Table API.
type Client struct {
	baseURL    string
	table      string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient builds a client from remote configuration.
func NewClient(cfg config.RemoteConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout()}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		table:      cfg.Table,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
	}
}

// FetchPage retrieves one page of records matching the filter expression.
func (c *Client) FetchPage(ctx context.Context, filter string, fields []string, limit, offset int) ([]Record, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("sysparm_query", filter)
	}
	if len(fields) > 0 {
		q.Set("sysparm_fields", strings.Join(fields, ","))
	}
	if limit > 0 {
		q.Set("sysparm_limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("sysparm_offset", strconv.Itoa(offset))
	}

	body, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, apperrors.NewValidationError("malformed remote response", map[string]any{
			"cause": err.Error(),
		})
	}
	return records, nil
}

// Probe performs a lightweight connectivity check: a single bounded read.
func (c *Client) Probe(ctx context.Context) error {
	q := url.Values{}
	q.Set("sysparm_limit", "1")
	q.Set("sysparm_fields", "sys_id")
	_, err := c.get(ctx, q)
	return err
}

func (c *Client) get(ctx context.Context, query url.Values) ([]byte, error) {
	if c.baseURL == "" {
		return nil, apperrors.NewConfigurationError("remote base URL not configured", nil)
	}

	endpoint := fmt.Sprintf("%s/api/now/table/%s?%s", c.baseURL, c.table, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, apperrors.NewConnectivityError("reading remote response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.NewAuthenticationError(
			fmt.Sprintf("remote rejected credentials (status %d)", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, apperrors.NewRemoteUnavailable(
			fmt.Sprintf("remote returned status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.NewRemoteUnavailable(
			fmt.Sprintf("unexpected remote status %d", resp.StatusCode), nil)
	}

	return body, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewConnectivityError("remote request timed out", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return apperrors.NewConnectivityError("remote host unreachable", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewConnectivityError("remote request timed out", err)
	}
	return apperrors.NewConnectivityError("remote request failed", err)
}
