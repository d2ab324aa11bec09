package beehiiv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.beehiiv.com/v2"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Client is a beehiiv API v2 client for post and publication statistics
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter // nil disables client-side limiting
}

// ClientOption is a function that configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithAPIKey sets the bearer API key
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit caps outgoing requests at rps with the given burst
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a new beehiiv API client
func New(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-2xx response from the API
type APIError struct {
	Status  int
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("beehiiv API error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("beehiiv API error (status %d)", e.Status)
}

// errorResponse is the API error envelope
type errorResponse struct {
	Status int `json:"status"`
	Errors []struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"errors"`
}

// EmailStats are per-post email statistics
type EmailStats struct {
	Recipients           int64    `json:"recipients"`
	Delivered            int64    `json:"delivered"`
	Opens                int64    `json:"opens"`
	UniqueOpens          int64    `json:"unique_opens"`
	OpenRate             *float64 `json:"open_rate"`
	Clicks               int64    `json:"clicks"`
	UniqueClicks         int64    `json:"unique_clicks"`
	VerifiedClicks       int64    `json:"verified_clicks"`
	UniqueVerifiedClicks int64    `json:"unique_verified_clicks"`
	ClickRate            *float64 `json:"click_rate"`
	VerifiedClickRate    *float64 `json:"verified_click_rate"`
	Unsubscribes         int64    `json:"unsubscribes"`
	SpamReports          int64    `json:"spam_reports"`
}

// PostStats wraps the stats expansion of a post
type PostStats struct {
	Email *EmailStats `json:"email"`
}

// Post is one post as returned by the API
type Post struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	Status      string     `json:"status"`
	PublishDate int64      `json:"publish_date"` // Unix seconds
	ContentTags []string   `json:"content_tags"`
	WebURL      string     `json:"web_url"`
	Stats       *PostStats `json:"stats,omitempty"`
}

// PublishedAt returns the publish date in UTC, or the zero time for posts
// that were never published
func (p Post) PublishedAt() time.Time {
	if p.PublishDate <= 0 {
		return time.Time{}
	}
	return time.Unix(p.PublishDate, 0).UTC()
}

// PostList is one page of the post listing
type PostList struct {
	Data         []Post `json:"data"`
	Limit        int    `json:"limit"`
	Page         int    `json:"page"`
	TotalResults int    `json:"total_results"`
	TotalPages   int    `json:"total_pages"`
}

// PublicationStats are publication-wide totals and averages
type PublicationStats struct {
	ActiveSubscriptions int64    `json:"active_subscriptions"`
	AverageOpenRate     *float64 `json:"average_open_rate"`
	AverageClickRate    *float64 `json:"average_click_rate"`
	TotalSent           int64    `json:"total_sent"`
	TotalDelivered      int64    `json:"total_delivered"`
	TotalUniqueOpened   int64    `json:"total_unique_opened"`
	TotalClicked        int64    `json:"total_clicked"`
}

// Publication is a publication with its stats expansion
type Publication struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Stats *PublicationStats `json:"stats,omitempty"`
}

// ListPostsInput selects a page of the listing
type ListPostsInput struct {
	PublicationID string
	Page          int
	Limit         int
}

// ListPosts lists confirmed posts of a publication, newest first
func (c *Client) ListPosts(ctx context.Context, in ListPostsInput) (*PostList, error) {
	params := url.Values{}
	params.Set("status", "confirmed")
	params.Set("order_by", "publish_date")
	params.Set("direction", "desc")
	if in.Page > 0 {
		params.Set("page", strconv.Itoa(in.Page))
	}
	if in.Limit > 0 {
		params.Set("limit", strconv.Itoa(in.Limit))
	}

	endpoint := fmt.Sprintf("%s/publications/%s/posts", c.baseURL, url.PathEscape(in.PublicationID))

	var out PostList
	if err := c.get(ctx, endpoint, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPost retrieves one post with its stats expansion
func (c *Client) GetPost(ctx context.Context, publicationID, postID string) (*Post, error) {
	params := url.Values{}
	params.Add("expand[]", "stats")

	endpoint := fmt.Sprintf("%s/publications/%s/posts/%s", c.baseURL, url.PathEscape(publicationID), url.PathEscape(postID))

	var out struct {
		Data Post `json:"data"`
	}
	if err := c.get(ctx, endpoint, params, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// GetPublication retrieves a publication with its stats expansion
func (c *Client) GetPublication(ctx context.Context, publicationID string) (*Publication, error) {
	params := url.Values{}
	params.Add("expand[]", "stats")

	endpoint := fmt.Sprintf("%s/publications/%s", c.baseURL, url.PathEscape(publicationID))

	var out struct {
		Data Publication `json:"data"`
	}
	if err := c.get(ctx, endpoint, params, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && len(errResp.Errors) > 0 {
			apiErr.Message = errResp.Errors[0].Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
