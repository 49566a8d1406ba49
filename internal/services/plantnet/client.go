package plantnet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"flora/internal/logging"
	"flora/internal/services"
	"flora/internal/species"
)

const (
	defaultBaseURL        = "https://my-api.plantnet.org"
	defaultProject        = "all"
	defaultOrgan          = "auto"
	defaultLanguage       = "en"
	defaultMaxResults     = 5
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultBreakerTrips   = 5
	defaultBreakerOpen    = 60 * time.Second
)

// Recognizer identifies the species shown in an image. Results are ordered by
// descending confidence with rank 1 first; an empty slice means no match.
type Recognizer interface {
	Identify(ctx context.Context, filename string, data []byte) ([]species.Result, error)
}

// Config captures the runtime settings required to talk to PlantNet.
type Config struct {
	APIKey             string
	BaseURL            string
	Project            string
	Organ              string
	Language           string
	MaxResults         int
	TimeoutSeconds     int
	RequestsPerSecond  float64
	BreakerFailures    int
	BreakerOpenSeconds int
}

// Client wraps the PlantNet v2 identify endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]species.Result]

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for retry and quota diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "plantnet")
	}
}

// WithRetryMaxAttempts overrides the default attempt count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// New constructs a PlantNet client. A missing API key fails with ErrAuth so a
// batch can stop before any image is read.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrAuth, "plantnet", "configure", "api key required (set plantnet.api_key or PLANTNET_API_KEY)", nil)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Project = strings.TrimSpace(cfg.Project); cfg.Project == "" {
		cfg.Project = defaultProject
	}
	if cfg.Organ = strings.TrimSpace(cfg.Organ); cfg.Organ == "" {
		cfg.Organ = defaultOrgan
	}
	if cfg.Language = strings.TrimSpace(cfg.Language); cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	client := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logging.NewComponentLogger(nil, "plantnet"),
		limiter:          newLimiter(cfg.RequestsPerSecond),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	client.breaker = client.newBreaker()
	return client, nil
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker[[]species.Result] {
	trips := c.cfg.BreakerFailures
	if trips <= 0 {
		trips = defaultBreakerTrips
	}
	open := defaultBreakerOpen
	if c.cfg.BreakerOpenSeconds > 0 {
		open = time.Duration(c.cfg.BreakerOpenSeconds) * time.Second
	}
	logger := c.logger
	return gobreaker.NewCircuitBreaker[[]species.Result](gobreaker.Settings{
		Name:        "plantnet_identify",
		MaxRequests: 1,
		Timeout:     open,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(trips)
		},
		// Only ErrTransient failures count toward tripping.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, services.ErrTransient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logging.WarnWithContext(logger, "plantnet circuit breaker opened", "circuit_breaker_open",
					logging.String("breaker", name),
					logging.String("from", from.String()),
					logging.String(logging.FieldErrorHint, "check PlantNet service status and network connectivity"),
					logging.String(logging.FieldImpact, "identification requests fail fast until the breaker closes"),
				)
				return
			}
			logger.Info("plantnet circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	})
}

// Identify submits data to PlantNet and returns the ranked candidates.
func (c *Client) Identify(ctx context.Context, filename string, data []byte) ([]species.Result, error) {
	contentType, ok := detectImageType(data)
	if !ok {
		return nil, services.Wrap(
			services.ErrUnsupportedFormat,
			"plantnet",
			"identify",
			fmt.Sprintf("%s is not a JPEG or PNG image", filename),
			nil,
		)
	}
	results, err := c.breaker.Execute(func() ([]species.Result, error) {
		return c.identifyWithRetry(ctx, filename, contentType, data)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, services.Wrap(services.ErrTransient, "plantnet", "identify", "circuit breaker open", err)
		}
		return nil, err
	}
	for i := range results {
		results[i].ImageFilename = filename
	}
	return results, nil
}

func detectImageType(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	switch contentType := http.DetectContentType(data); contentType {
	case "image/jpeg", "image/png":
		return contentType, true
	default:
		return contentType, false
	}
}

func (c *Client) identifyWithRetry(ctx context.Context, filename, contentType string, data []byte) ([]species.Result, error) {
	attempts := c.retryAttempts()
	logger := logging.WithContext(ctx, c.logger)
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, services.Wrap(services.ErrTransient, "plantnet", "rate limit", "rate limiter wait aborted", err)
		}
		results, err := c.identifyOnce(ctx, filename, contentType, data)
		if err == nil {
			return results, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		logger.Debug("plantnet request failed; retrying",
			logging.String("image", filename),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, services.Wrap(services.ErrTransient, "plantnet", "identify", "retry wait aborted", err)
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return nil, classify(lastErr, attempts)
}

type identifyResponse struct {
	BestMatch string `json:"bestMatch"`
	Results   []struct {
		Score   float64 `json:"score"`
		Species struct {
			ScientificNameWithoutAuthor string   `json:"scientificNameWithoutAuthor"`
			ScientificName              string   `json:"scientificName"`
			CommonNames                 []string `json:"commonNames"`
		} `json:"species"`
	} `json:"results"`
	RemainingIdentificationRequests *int `json:"remainingIdentificationRequests"`
}

func (c *Client) identifyOnce(ctx context.Context, filename, contentType string, data []byte) ([]species.Result, error) {
	body, formType, err := encodeForm(filename, contentType, c.cfg.Organ, data)
	if err != nil {
		return nil, fmt.Errorf("plantnet request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), body)
	if err != nil {
		return nil, fmt.Errorf("plantnet request: new request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plantnet request: http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("plantnet request: read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		// PlantNet answers 404 when no species matches the image.
		return []species.Result{}, nil
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(payload)),
			RetryAfter: retryAfter,
		}
	}

	var decoded identifyResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, &decodeError{err: err}
	}
	if decoded.RemainingIdentificationRequests != nil {
		logging.WithContext(ctx, c.logger).Debug("plantnet quota",
			logging.Int("remaining_requests", *decoded.RemainingIdentificationRequests),
		)
	}
	return rankResults(decoded), nil
}

func (c *Client) endpoint() string {
	query := url.Values{}
	query.Set("api-key", c.cfg.APIKey)
	query.Set("lang", c.cfg.Language)
	query.Set("nb-results", strconv.Itoa(c.cfg.MaxResults))
	query.Set("include-related-images", "false")
	return c.cfg.BaseURL + "/v2/identify/" + url.PathEscape(c.cfg.Project) + "?" + query.Encode()
}

func encodeForm(filename, contentType, organ string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("organs", organ); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func rankResults(resp identifyResponse) []species.Result {
	results := make([]species.Result, 0, len(resp.Results))
	for _, candidate := range resp.Results {
		name := candidate.Species.ScientificNameWithoutAuthor
		if strings.TrimSpace(name) == "" {
			name = candidate.Species.ScientificName
		}
		normalized := species.Normalize(name)
		if normalized == "" {
			continue
		}
		score := candidate.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		results = append(results, species.Result{Species: normalized, Confidence: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}
