package catalog

import (
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

	"github.com/avast/retry-go/v4"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"trailerreel/models"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"

	// PageSize is the fixed number of movies per catalog page.
	PageSize = 20
)

var (
	ErrNotConfigured   = errors.New("catalog api key not configured")
	ErrUpstream        = errors.New("catalog upstream error")
	ErrDecode          = errors.New("catalog decode error")
	ErrUnknownCategory = errors.New("unknown catalog category")
)

// rateLimitedError is returned for HTTP 429; it is the only response that is retried.
type rateLimitedError struct {
	path string
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("%v: rate limited on %s", ErrUpstream, e.path)
}

func (e *rateLimitedError) Unwrap() error { return ErrUpstream }

// Client talks to the TMDB v3 API.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	limiter *rate.Limiter

	maxAttempts uint
	retryDelay  time.Duration
}

type Option func(*Client)

func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithRateLimit paces outgoing requests. A non-positive value disables pacing.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithRetryBackoff tunes the handling of 429 responses.
func WithRetryBackoff(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = attempts
		c.retryDelay = delay
	}
}

// NewClient builds a catalog client. apiKey may be a v3 key or a v4 read token.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      strings.TrimSpace(apiKey),
		baseURL:     defaultBaseURL,
		httpc:       &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(20), 20),
		maxAttempts: 4,
		retryDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts == 0 {
		c.maxAttempts = 1
	}
	return c
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

// ListCategory returns one page of a category listing. page is zero-based.
func (c *Client) ListCategory(ctx context.Context, category models.Category, lang string, page int, region string) (*models.MoviePage, error) {
	endpoint := category.Endpoint()
	if endpoint == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if page < 0 {
		page = 0
	}

	query := url.Values{}
	query.Set("language", normalizeLanguage(lang))
	query.Set("page", strconv.Itoa(page+1))
	if r := normalizeRegion(region); r != "" {
		query.Set("region", r)
	}

	var result models.MoviePage
	if err := c.get(ctx, "/movie/"+endpoint, query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MovieVideos returns the videos attached to a movie in upstream order.
func (c *Client) MovieVideos(ctx context.Context, movieID int) (*models.MovieVideos, error) {
	var result models.MovieVideos
	if err := c.get(ctx, "/movie/"+strconv.Itoa(movieID)+"/videos", url.Values{}, &result); err != nil {
		return nil, err
	}
	if result.ID == 0 {
		result.ID = movieID
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	bearer := looksLikeReadToken(c.apiKey)
	if !bearer {
		query.Set("api_key", c.apiKey)
	}
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return fmt.Errorf("%w: build request %s: %w", ErrUpstream, path, err)
			}
			req.Header.Set("Accept", "application/json")
			if bearer {
				req.Header.Set("Authorization", "Bearer "+c.apiKey)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return fmt.Errorf("%w: request %s: %w", ErrUpstream, path, err)
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
			case http.StatusTooManyRequests:
				_, _ = io.Copy(io.Discard, resp.Body)
				return &rateLimitedError{path: path}
			case http.StatusUnauthorized:
				return fmt.Errorf("%w: invalid api key", ErrUpstream)
			default:
				return fmt.Errorf("%w: HTTP %d for %s", ErrUpstream, resp.StatusCode, path)
			}

			if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var rl *rateLimitedError
			return errors.As(err, &rl)
		}),
	)
}

// looksLikeReadToken reports whether the credential is a v4 bearer token (a JWT)
// rather than a v3 api key.
func looksLikeReadToken(key string) bool {
	return strings.HasPrefix(key, "eyJ") && strings.Count(key, ".") == 2
}

func normalizeLanguage(value string) string {
	value = strings.ReplaceAll(strings.TrimSpace(value), "_", "-")
	if value == "" {
		return "en-US"
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "en-US"
	}
	base, _ := tag.Base()
	region, _ := tag.Region()
	if region.String() == "ZZ" {
		return base.String()
	}
	return base.String() + "-" + region.String()
}

func normalizeRegion(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	region, err := language.ParseRegion(value)
	if err != nil {
		return ""
	}
	return region.String()
}
