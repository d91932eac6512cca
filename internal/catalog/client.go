// Package catalog is the HTTP client for the downstream book recommender API,
// the system of record this service indexes into.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/dfennessey/book-recommender-indexer/internal/push"
)

// Config controls Client behavior.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// MaxRetries bounds attempts against retryable statuses (429/503/504).
	MaxRetries int
	// RetryBackoff is the fixed wait between attempts.
	RetryBackoff time.Duration
	// CacheTTL bounds how long a user's read-book set is trusted. The same
	// user's reviews arrive in bursts right after a profile crawl, so even a
	// short TTL removes most repeat lookups.
	CacheTTL time.Duration
	// PopularityLimit is the reader-count cutoff passed to the popularity
	// endpoint; counting past it is wasted work server-side.
	PopularityLimit int
	// MaxInflight bounds the popularity fan-out.
	MaxInflight int
}

// Client talks to the book recommender API.
type Client struct {
	cfg       Config
	http      *http.Client
	userBooks *gocache.Cache
	// readSetMu serializes read-modify-write updates of cached read sets;
	// the cache itself only locks individual Get/Set calls.
	readSetMu sync.Mutex
	logger    *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.PopularityLimit <= 0 {
		cfg.PopularityLimit = 5
	}
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 8
	}
	return &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		userBooks: gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:    logger,
	}
}

// IsReady reports whether the recommender API answers its health check.
func (c *Client) IsReady(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("catalog readiness check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode < 400
}

// CreateBook writes a book via PUT /books/{book_id}.
func (c *Client) CreateBook(ctx context.Context, book push.BookV1) error {
	url := fmt.Sprintf("%s/books/%d", c.cfg.BaseURL, book.BookID)
	body, err := json.Marshal(newBookRequest(book))
	if err != nil {
		return fmt.Errorf("marshal book request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("%w: put book %d: %w", ErrServer, book.BookID, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	switch {
	case resp.StatusCode < 400:
		c.logger.Info("indexed book", zap.Int64("book_id", book.BookID))
		return nil
	case resp.StatusCode < 500:
		return fmt.Errorf("%w: put book %d: %s", ErrClient, book.BookID, readBody(resp))
	default:
		return fmt.Errorf("%w: put book %d: %s", ErrServer, book.BookID, readBody(resp))
	}
}

// BooksReadByUser returns the book IDs the user already has reviews for,
// consulting the TTL cache first. A 4xx is a business-valid answer: the user
// is unknown downstream, so every incoming review for them is new. That empty
// answer is cached too.
func (c *Client) BooksReadByUser(ctx context.Context, userID int64) ([]int64, error) {
	key := strconv.FormatInt(userID, 10)
	if cached, ok := c.userBooks.Get(key); ok {
		c.logger.Debug("user read-set cache hit", zap.Int64("user_id", userID))
		return append([]int64(nil), cached.([]int64)...), nil
	}

	url := fmt.Sprintf("%s/users/%d/book-ids", c.cfg.BaseURL, userID)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: get user %d book ids: %w", ErrServer, userID, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	switch {
	case resp.StatusCode < 400:
		var payload userBooksResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("%w: decode user %d book ids: %w", ErrServer, userID, err)
		}
		c.userBooks.Set(key, payload.BookIDs, gocache.DefaultExpiration)
		return payload.BookIDs, nil
	case resp.StatusCode < 500:
		c.logger.Info("user unknown downstream, treating read set as empty",
			zap.Int64("user_id", userID))
		c.userBooks.Set(key, []int64{}, gocache.DefaultExpiration)
		return []int64{}, nil
	default:
		return nil, fmt.Errorf("%w: get user %d book ids: %s", ErrServer, userID, readBody(resp))
	}
}

// AddReadBook folds a freshly indexed review into the cached read set so a
// duplicate arriving inside the TTL window is caught without a round trip.
func (c *Client) AddReadBook(userID, bookID int64) {
	c.readSetMu.Lock()
	defer c.readSetMu.Unlock()
	key := strconv.FormatInt(userID, 10)
	cached, ok := c.userBooks.Get(key)
	if !ok {
		return
	}
	ids := cached.([]int64)
	for _, id := range ids {
		if id == bookID {
			return
		}
	}
	c.userBooks.Set(key, append(append([]int64(nil), ids...), bookID), gocache.DefaultExpiration)
}

// AlreadyIndexed returns which of the given book IDs the recommender API
// already knows about.
func (c *Client) AlreadyIndexed(ctx context.Context, bookIDs []int64) ([]int64, error) {
	body, err := json.Marshal(bookExistsRequest{BookIDs: bookIDs})
	if err != nil {
		return nil, fmt.Errorf("marshal exists request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/books/batch/exists", body)
	if err != nil {
		return nil, fmt.Errorf("%w: batch exists: %w", ErrServer, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: batch exists: %s", ErrServer, readBody(resp))
	}
	var payload bookExistsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode batch exists: %w", ErrServer, err)
	}
	return payload.BookIDs, nil
}

// CreateReviews writes a batch of user reviews and returns how many the API
// indexed.
func (c *Client) CreateReviews(ctx context.Context, reviews []push.UserReviewV1) (int, error) {
	items := make([]reviewItem, 0, len(reviews))
	for _, r := range reviews {
		items = append(items, reviewItem{
			UserID:     r.UserID,
			BookID:     r.BookID,
			UserRating: r.UserRating,
			DateRead:   r.DateRead,
			ScrapeTime: r.ScrapeTime,
		})
	}
	body, err := json.Marshal(reviewBatchRequest{UserReviews: items})
	if err != nil {
		return 0, fmt.Errorf("marshal review batch: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/users/batch/create", body)
	if err != nil {
		return 0, fmt.Errorf("%w: review batch: %w", ErrServer, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("%w: review batch: %s", ErrServer, readBody(resp))
	}
	var payload reviewBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: decode review batch: %w", ErrServer, err)
	}
	c.logger.Info("indexed user reviews", zap.Int("indexed", payload.Indexed))
	return payload.Indexed, nil
}

// BookPopularity looks up how many users reference each book, fanning out one
// bounded request per ID. A book whose lookup keeps failing is skipped rather
// than spoiling the batch.
func (c *Client) BookPopularity(ctx context.Context, bookIDs []int64) (map[int64]int64, error) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		sem    = make(chan struct{}, c.cfg.MaxInflight)
		result = make(map[int64]int64, len(bookIDs))
	)
	for _, bookID := range bookIDs {
		wg.Add(1)
		go func(bookID int64) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			count, err := c.bookPopularity(ctx, bookID)
			if err != nil {
				c.logger.Warn("book popularity lookup failed",
					zap.Int64("book_id", bookID), zap.Error(err))
				return
			}
			mu.Lock()
			result[bookID] = count
			mu.Unlock()
		}(bookID)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("book popularity fan-out: %w", err)
	}
	return result, nil
}

func (c *Client) bookPopularity(ctx context.Context, bookID int64) (int64, error) {
	url := fmt.Sprintf("%s/users/book-popularity/%d?limit=%d",
		c.cfg.BaseURL, bookID, c.cfg.PopularityLimit)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: popularity %d: %w", ErrServer, bookID, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("%w: popularity %d: %s", ErrClient, bookID, readBody(resp))
	}
	var payload bookPopularityResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: decode popularity %d: %w", ErrServer, bookID, err)
	}
	return payload.UserCount, nil
}

// do issues a request, retrying retryable statuses and transport errors up to
// MaxRetries attempts with a fixed backoff.
func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err == nil && !retryable(resp.StatusCode) {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp.Body.Close() //nolint:errcheck
		}
		if attempt < c.cfg.MaxRetries {
			c.logger.Warn("retrying catalog request",
				zap.String("url", url), zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-time.After(c.cfg.RetryBackoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("retry wait: %w", ctx.Err())
			}
		}
	}
	return nil, fmt.Errorf("exhausted %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func readBody(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if err != nil {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, data)
}
