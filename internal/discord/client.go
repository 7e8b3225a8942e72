package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultPageSize is the largest page the members endpoint returns.
	DefaultPageSize = 1000
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	defaultRetryBase  = 500 * time.Millisecond
	defaultMaxRetries = 3
	userAgent         = "DiscordBot (https://github.com/rshade/guildsweep, 1.0)"
	auditLogHeader    = "X-Audit-Log-Reason"
	maxErrorBody      = 4096
)

// Client talks to the Discord REST API on behalf of a bot in one guild.
type Client struct {
	HTTPClient *http.Client

	baseURL    string
	token      string
	guildID    string
	pageSize   int
	retryBase  time.Duration
	maxRetries uint64
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithPageSize sets the page size used when listing members.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= DefaultPageSize {
			c.pageSize = n
		}
	}
}

// WithRetry sets the exponential backoff base and the retry count for reads.
func WithRetry(base time.Duration, maxRetries uint64) Option {
	return func(c *Client) {
		if base > 0 {
			c.retryBase = base
		}
		c.maxRetries = maxRetries
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient returns a Client for guildID authenticated with a bot token.
func NewClient(baseURL, token, guildID string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if guildID == "" {
		return nil, ErrMissingGuild
	}
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}

	c := &Client{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		guildID:    guildID,
		pageSize:   DefaultPageSize,
		retryBase:  defaultRetryBase,
		maxRetries: defaultMaxRetries,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GuildID returns the guild the client operates on.
func (c *Client) GuildID() string {
	return c.guildID
}

// Roles lists the guild's roles.
func (c *Client) Roles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := c.get(ctx, c.guildPath("roles"), &roles); err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	return roles, nil
}

// RoleByName returns the first role whose name matches exactly.
func (c *Client) RoleByName(ctx context.Context, name string) (Role, error) {
	roles, err := c.Roles(ctx)
	if err != nil {
		return Role{}, err
	}
	for _, r := range roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, fmt.Errorf("%w: %q", ErrRoleNotFound, name)
}

// Members lists every guild member, following the after cursor page by page.
func (c *Client) Members(ctx context.Context) ([]Member, error) {
	var (
		all   []Member
		after string
	)
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageSize))
		if after != "" {
			q.Set("after", after)
		}

		var page []Member
		if err := c.get(ctx, c.guildPath("members")+"?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("listing members after %q: %w", after, err)
		}
		all = append(all, page...)

		c.logger.Debug().
			Int("page_size", len(page)).
			Int("total", len(all)).
			Msg("fetched member page")

		if len(page) < c.pageSize {
			return all, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// Member fetches a single member's current state.
func (c *Client) Member(ctx context.Context, userID string) (Member, error) {
	var m Member
	if err := c.get(ctx, c.guildPath("members", userID), &m); err != nil {
		return Member{}, fmt.Errorf("getting member %s: %w", userID, err)
	}
	return m, nil
}

// KickMember removes a member from the guild, recording reason in the audit log.
// Kicks are never retried.
func (c *Client) KickMember(ctx context.Context, userID, reason string) error {
	header := http.Header{}
	if reason != "" {
		header.Set(auditLogHeader, url.PathEscape(reason))
	}
	if err := c.do(ctx, http.MethodDelete, c.guildPath("members", userID), header, nil, nil); err != nil {
		return fmt.Errorf("kicking member %s: %w", userID, err)
	}
	return nil
}

// SendDirectMessage opens a DM channel with the user and posts msg to it.
func (c *Client) SendDirectMessage(ctx context.Context, userID string, msg Message) error {
	var channel struct {
		ID string `json:"id"`
	}
	body := map[string]string{"recipient_id": userID}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", nil, body, &channel); err != nil {
		return fmt.Errorf("opening dm channel with %s: %w", userID, err)
	}
	if channel.ID == "" {
		return fmt.Errorf("opening dm channel with %s: empty channel id", userID)
	}
	if err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channel.ID)+"/messages", nil, msg, nil); err != nil {
		return fmt.Errorf("sending dm to %s: %w", userID, err)
	}
	return nil
}

func (c *Client) guildPath(parts ...string) string {
	segs := make([]string, 0, len(parts)+2)
	segs = append(segs, "guilds", url.PathEscape(c.guildID))
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return "/" + strings.Join(segs, "/")
}

// get performs an idempotent read, retrying rate limits and server errors
// with exponential backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, nil, nil, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Temporary() {
			c.logger.Debug().
				Str("path", path).
				Int("status", apiErr.Status).
				Msg("retrying discord read")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(data) > 0 {
		_ = json.Unmarshal(data, apiErr)
	}
	return apiErr
}
