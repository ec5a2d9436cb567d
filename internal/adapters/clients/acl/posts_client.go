package acl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/clients"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

const (
	postsPath = "/posts"

	// Fallbacks for records missing the projected fields.
	defaultText     = "Untitled"
	defaultCategory = "General"
)

// PostsClientConfig configures a PostsClient.
type PostsClientConfig struct {
	Client      *clients.Client
	ServiceName string

	// BatchSize keeps the first N records of a fetch. Zero keeps all.
	BatchSize int

	Logger *slog.Logger
}

// PostsClient implements ports.QuoteSource against a posts collection
// endpoint: GET returns the records to sync, POST accepts a new quote.
type PostsClient struct {
	BaseAdapter

	batchSize int
	logger    *slog.Logger
}

var _ ports.QuoteSource = (*PostsClient)(nil)

// NewPostsClient creates the adapter. Panics if Client is nil.
func NewPostsClient(cfg PostsClientConfig) *PostsClient {
	if cfg.Client == nil {
		panic("PostsClient: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.ServiceName
	if name == "" {
		name = "posts-service"
	}

	return &PostsClient{
		BaseAdapter: NewBaseAdapter(cfg.Client, name),
		batchSize:   max(cfg.BatchSize, 0),
		logger:      logger,
	}
}

// postRecord is the remote record. Pointers distinguish absent from empty.
type postRecord struct {
	ID     int     `json:"id,omitempty"`
	UserID int     `json:"userId,omitempty"`
	Title  *string `json:"title"`
	Body   *string `json:"body"`
}

// outgoingQuote is the POST body.
type outgoingQuote struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// FetchQuotes retrieves the posts and projects the batch to quotes.
func (c *PostsClient) FetchQuotes(ctx context.Context) (domain.Collection, error) {
	const operation = "fetch quotes"

	c.logger.Log(ctx, logging.LevelTrace, "starting request", slog.String("path", postsPath))

	body, err := c.Get(ctx, postsPath, operation)
	if err != nil {
		return nil, err
	}

	records, err := DecodeResponse[[]postRecord](body)
	if err != nil {
		return nil, domain.NewTransientNetworkError(c.ServiceName(), operation, err)
	}

	if c.batchSize > 0 && len(records) > c.batchSize {
		records = records[:c.batchSize]
	}

	quotes, err := TranslateSlice(records, translatePost)
	if err != nil {
		return nil, domain.NewTransientNetworkError(c.ServiceName(), operation, err)
	}

	c.logger.DebugContext(ctx, "fetched remote quotes", slog.Int("count", len(quotes)))

	return domain.Collection(quotes), nil
}

// PushQuote posts one quote. The echoed response is only logged.
func (c *PostsClient) PushQuote(ctx context.Context, quote domain.Quote) error {
	const operation = "push quote"

	payload, err := json.Marshal(outgoingQuote{Text: quote.Text, Category: quote.Category})
	if err != nil {
		return domain.NewTransientNetworkError(c.ServiceName(), operation, err)
	}

	body, err := c.Post(ctx, postsPath, bytes.NewReader(payload), operation)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	echo, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	c.logger.DebugContext(ctx, "quote pushed", slog.String("response", string(echo)))

	return nil
}

// translatePost projects a record: title becomes the text, the first
// whitespace-separated word of the body becomes the category.
func translatePost(p *postRecord) (domain.Quote, error) {
	text := defaultText
	if p.Title != nil && *p.Title != "" {
		text = *p.Title
	}

	category := defaultCategory
	if p.Body != nil {
		if fields := strings.Fields(*p.Body); len(fields) > 0 {
			category = fields[0]
		}
	}

	return domain.Quote{Text: text, Category: category}, nil
}
