// Package tasks enqueues scrape jobs onto Cloud Tasks. Each task is an HTTP
// POST against the scraper's scrapyd-style /crawl.json endpoint; the scraper
// publishes its results back onto the Pub/Sub topics this service subscribes
// to, closing the crawl loop.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Spider names the scraper understands.
const (
	BookSpider        = "book"
	UserReviewsSpider = "user_reviews"
)

// Config identifies the queue and the scraper it feeds.
type Config struct {
	ProjectID      string
	Location       string
	Queue          string
	ScraperBaseURL string
	// EmulatorHost, when set, points the client at a local emulator over an
	// insecure channel instead of the managed service.
	EmulatorHost string

	BookTopic       string
	UserReviewTopic string
}

// api is the slice of the Cloud Tasks client the Client needs; fakes satisfy
// it in tests.
type api interface {
	CreateTask(ctx context.Context, req *cloudtaskspb.CreateTaskRequest, opts ...gax.CallOption) (*cloudtaskspb.Task, error)
	GetQueue(ctx context.Context, req *cloudtaskspb.GetQueueRequest, opts ...gax.CallOption) (*cloudtaskspb.Queue, error)
	Close() error
}

// Client enqueues scrape tasks.
type Client struct {
	api    api
	cfg    Config
	logger *zap.Logger
}

// crawlArgs mirror the scraper's crawl_args contract. IDs travel as strings;
// the scraper splits them on commas.
type crawlArgs struct {
	Books     string `json:"books,omitempty"`
	Users     string `json:"users,omitempty"`
	ProjectID string `json:"project_id"`
	TopicName string `json:"topic_name"`
}

type crawlRequest struct {
	SpiderName    string    `json:"spider_name"`
	StartRequests bool      `json:"start_requests"`
	CrawlArgs     crawlArgs `json:"crawl_args"`
}

// New connects to Cloud Tasks, or to the emulator when cfg.EmulatorHost is
// set, and verifies the queue exists before returning.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts []option.ClientOption
	if cfg.EmulatorHost != "" {
		opts = append(opts,
			option.WithEndpoint(cfg.EmulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := cloudtasks.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create cloud tasks client: %w", err)
	}
	c := &Client{api: client, cfg: cfg, logger: logger}
	if _, err := client.GetQueue(ctx, &cloudtaskspb.GetQueueRequest{Name: c.queuePath()}); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close cloud tasks client after queue check failure",
				zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get queue %q: %w", c.queuePath(), err)
	}
	return c, nil
}

// NewWithAPI constructs a Client from an existing API handle (primarily for
// testing).
func NewWithAPI(a api, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: a, cfg: cfg, logger: logger}
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if err := c.api.Close(); err != nil {
		return fmt.Errorf("close cloud tasks client: %w", err)
	}
	return nil
}

// IsReady reports whether the configured queue is reachable.
func (c *Client) IsReady(ctx context.Context) bool {
	_, err := c.api.GetQueue(ctx, &cloudtaskspb.GetQueueRequest{Name: c.queuePath()})
	if err != nil {
		c.logger.Error("tasks readiness check failed", zap.Error(err))
	}
	return err == nil
}

// EnqueueBookScrape creates a task that crawls one book. Returns the created
// task's name.
func (c *Client) EnqueueBookScrape(ctx context.Context, bookID int64) (string, error) {
	body := crawlRequest{
		SpiderName:    BookSpider,
		StartRequests: true,
		CrawlArgs: crawlArgs{
			Books:     strconv.FormatInt(bookID, 10),
			ProjectID: c.cfg.ProjectID,
			TopicName: c.cfg.BookTopic,
		},
	}
	name, err := c.createTask(ctx, "", body)
	if err != nil {
		return "", fmt.Errorf("enqueue book %d scrape: %w", bookID, err)
	}
	c.logger.Info("enqueued book scrape",
		zap.Int64("book_id", bookID), zap.String("task", name))
	return name, nil
}

// EnqueueProfileScrape creates a task that crawls one user's reviews. The
// task ID is deterministic per user per hour, so Cloud Tasks itself debounces
// a profile that is announced repeatedly in a short window: the duplicate
// create comes back AlreadyExists and the existing task name is returned.
func (c *Client) EnqueueProfileScrape(ctx context.Context, userID int64) (string, error) {
	body := crawlRequest{
		SpiderName:    UserReviewsSpider,
		StartRequests: true,
		CrawlArgs: crawlArgs{
			Users:     strconv.FormatInt(userID, 10),
			ProjectID: c.cfg.ProjectID,
			TopicName: c.cfg.UserReviewTopic,
		},
	}
	taskID := fmt.Sprintf("user-scrape-%d-%s", userID, time.Now().UTC().Format("2006010215"))
	name, err := c.createTask(ctx, taskID, body)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			existing := c.taskPath(taskID)
			c.logger.Info("profile scrape already queued",
				zap.Int64("user_id", userID), zap.String("task", existing))
			return existing, nil
		}
		return "", fmt.Errorf("enqueue user %d scrape: %w", userID, err)
	}
	c.logger.Info("enqueued profile scrape",
		zap.Int64("user_id", userID), zap.String("task", name))
	return name, nil
}

func (c *Client) createTask(ctx context.Context, taskID string, body crawlRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal crawl request: %w", err)
	}
	task := &cloudtaskspb.Task{
		MessageType: &cloudtaskspb.Task_HttpRequest{
			HttpRequest: &cloudtaskspb.HttpRequest{
				Url:        c.cfg.ScraperBaseURL + "/crawl.json",
				HttpMethod: cloudtaskspb.HttpMethod_POST,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       payload,
			},
		},
	}
	if taskID != "" {
		task.Name = c.taskPath(taskID)
	}
	created, err := c.api.CreateTask(ctx, &cloudtaskspb.CreateTaskRequest{
		Parent: c.queuePath(),
		Task:   task,
	})
	if err != nil {
		return "", err
	}
	return created.GetName(), nil
}

func (c *Client) queuePath() string {
	return fmt.Sprintf("projects/%s/locations/%s/queues/%s",
		c.cfg.ProjectID, c.cfg.Location, c.cfg.Queue)
}

func (c *Client) taskPath(taskID string) string {
	return c.queuePath() + "/tasks/" + taskID
}
