package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"postflow/internal/config"
	"postflow/internal/media"
	"postflow/internal/services"
)

// Publisher publishes one asset with its caption and returns the platform's
// id for the new post.
type Publisher interface {
	Publish(ctx context.Context, asset media.Asset, caption string) (string, error)
}

// HTTPDoer describes the HTTP client used by the platform client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Insights holds engagement counters for a published post.
type Insights struct {
	Likes    int `json:"like_count"`
	Comments int `json:"comments_count"`
}

// Account identifies the configured platform account.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

const (
	containerFinished   = "FINISHED"
	containerError      = "ERROR"
	defaultStatusPolls  = 30
	defaultPollInterval = 2 * time.Second
	maxErrorBody        = 4096
)

// Client is the HTTP implementation of Publisher.
type Client struct {
	baseURL      string
	accountID    string
	token        string
	timeout      time.Duration
	http         HTTPDoer
	limiter      *rate.Limiter
	statusPolls  int
	pollInterval time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLimiter overrides the outbound rate limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithStatusPolling sets how often and how many times a video container is
// checked before giving up.
func WithStatusPolling(interval time.Duration, attempts int) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if attempts > 0 {
			c.statusPolls = attempts
		}
	}
}

// NewClient builds a platform client from configuration.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	perMinute := cfg.Platform.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 1
	}
	c := &Client{
		baseURL:      strings.TrimRight(cfg.Platform.BaseURL, "/"),
		accountID:    cfg.Platform.AccountID,
		token:        cfg.Platform.AccessToken,
		timeout:      time.Duration(cfg.Platform.RequestTimeout) * time.Second,
		http:         &http.Client{},
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 2),
		statusPolls:  defaultStatusPolls,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish creates a container for asset and publishes it. The whole exchange,
// including video processing, is bounded by the configured request timeout.
func (c *Client) Publish(ctx context.Context, asset media.Asset, caption string) (string, error) {
	if strings.TrimSpace(c.accountID) == "" || strings.TrimSpace(c.token) == "" {
		return "", services.Wrap(services.ErrConfiguration, "platform", "publish",
			"platform.account_id and platform.access_token must be set", nil)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	containerID, err := c.createContainer(ctx, asset, caption)
	if err != nil {
		return "", err
	}
	if asset.Kind == media.KindVideo {
		if err := c.waitForContainer(ctx, containerID); err != nil {
			return "", err
		}
	}

	form := url.Values{"creation_id": {containerID}}
	var published struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, "media_publish", c.accountPath("media_publish"), form, &published); err != nil {
		return "", err
	}
	if strings.TrimSpace(published.ID) == "" {
		return "", services.Wrap(services.ErrExternal, "platform", "media_publish",
			"Platform acknowledged publish without a media id", nil)
	}
	return published.ID, nil
}

func (c *Client) createContainer(ctx context.Context, asset media.Asset, caption string) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if asset.Remote() {
		form := url.Values{"caption": {caption}}
		if asset.Kind == media.KindVideo {
			form.Set("media_type", "REELS")
			form.Set("video_url", asset.URL)
		} else {
			form.Set("image_url", asset.URL)
		}
		if err := c.postForm(ctx, "create_container", c.accountPath("media"), form, &created); err != nil {
			return "", err
		}
	} else {
		if err := c.upload(ctx, asset, caption, &created); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(created.ID) == "" {
		return "", services.Wrap(services.ErrExternal, "platform", "create_container",
			"Platform returned no container id", nil)
	}
	return created.ID, nil
}

func (c *Client) upload(ctx context.Context, asset media.Asset, caption string, out any) error {
	if asset.LocalPath == "" {
		return services.Wrap(services.ErrValidation, "platform", "upload", "Asset has neither URL nor local path", nil)
	}
	file, err := os.Open(asset.LocalPath)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "platform", "upload", "Open media file", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("caption", caption); err != nil {
		return fmt.Errorf("write caption field: %w", err)
	}
	if asset.Kind == media.KindVideo {
		if err := writer.WriteField("media_type", "REELS"); err != nil {
			return fmt.Errorf("write media type field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("source", filepath.Base(asset.LocalPath))
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return services.Wrap(services.ErrExternal, "platform", "upload", "Read media file", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	return c.do(ctx, "upload", http.MethodPost, c.accountPath("media"), writer.FormDataContentType(), &body, out)
}

func (c *Client) waitForContainer(ctx context.Context, containerID string) error {
	for attempt := 0; attempt < c.statusPolls; attempt++ {
		var status struct {
			StatusCode string `json:"status_code"`
			Status     string `json:"status"`
		}
		endpoint := c.baseURL + "/" + url.PathEscape(containerID) + "?fields=status_code,status"
		if err := c.do(ctx, "container_status", http.MethodGet, endpoint, "", nil, &status); err != nil {
			return err
		}
		switch strings.ToUpper(status.StatusCode) {
		case containerFinished:
			return nil
		case containerError:
			return services.Wrap(services.ErrExternal, "platform", "container_status",
				fmt.Sprintf("Platform failed to process video: %s", status.Status), nil)
		}
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return classifyTransportError("container_status", ctx.Err())
		}
	}
	return services.Wrap(services.ErrTimeout, "platform", "container_status",
		fmt.Sprintf("Video container %s still processing after %d checks", containerID, c.statusPolls), nil)
}

// Insights fetches like and comment counts for a published post.
func (c *Client) Insights(ctx context.Context, externalID string) (Insights, error) {
	var insights Insights
	endpoint := c.baseURL + "/" + url.PathEscape(externalID) + "?fields=like_count,comments_count"
	if err := c.withTimeout(ctx, func(ctx context.Context) error {
		return c.do(ctx, "insights", http.MethodGet, endpoint, "", nil, &insights)
	}); err != nil {
		return Insights{}, err
	}
	return insights, nil
}

// Verify checks that the configured credentials can see the account.
func (c *Client) Verify(ctx context.Context) (Account, error) {
	var account Account
	endpoint := c.accountPath("") + "?fields=id,username"
	if err := c.withTimeout(ctx, func(ctx context.Context) error {
		return c.do(ctx, "verify", http.MethodGet, endpoint, "", nil, &account)
	}); err != nil {
		return Account{}, err
	}
	return account, nil
}

func (c *Client) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if c.timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(ctx)
}

func (c *Client) accountPath(edge string) string {
	path := c.baseURL + "/" + url.PathEscape(c.accountID)
	if edge != "" {
		path += "/" + edge
	}
	return path
}

func (c *Client) postForm(ctx context.Context, operation, endpoint string, form url.Values, out any) error {
	return c.do(ctx, operation, http.MethodPost, endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), out)
}

func (c *Client) do(ctx context.Context, operation, method, endpoint, contentType string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return classifyTransportError(operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "platform", operation, "Build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternal, "platform", operation, "Decode platform response", err)
	}
	return nil
}

type apiError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := strings.TrimSpace(string(raw))
	var parsed apiError
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Message != "" {
		message = fmt.Sprintf("%s (type=%s code=%d)", parsed.Error.Message, parsed.Error.Type, parsed.Error.Code)
	}
	detail := fmt.Sprintf("Platform returned %d: %s", resp.StatusCode, message)

	marker := services.ErrExternal
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		marker = services.ErrTransient
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		marker = services.ErrConfiguration
	}
	return services.Wrap(marker, "platform", operation, detail, nil)
}

func classifyTransportError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "platform", operation, "Platform request timed out", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "platform", operation, "Platform request timed out", err)
	}
	return services.Wrap(services.ErrTransient, "platform", operation, "Platform request failed", err)
}
