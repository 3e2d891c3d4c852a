// Package jama implements the traversal node client on top of the Jama REST API.
package jama

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

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/temirov/rmtree/internal/traverse"
)

const (
	restPathPrefix       = "rest/latest/"
	defaultTimeout       = 30 * time.Second
	defaultPageSize      = 20
	maximumPageSize      = 50
	defaultUserAgent     = "rmtree-jama-client"
	defaultRetryAttempts = 3
	defaultRetryInterval = 500 * time.Millisecond
	progressEvery        = 40
	errorBodyLimit       = 8 * 1024
	headerAccept         = "Accept"
	headerUserAgent      = "User-Agent"
	acceptJSON           = "application/json"
	queryStartAt         = "startAt"
	queryMaxResults      = "maxResults"
	queryProject         = "project"
	queryRootOnly        = "rootOnly"
	queryDocumentKey     = "documentKey"
)

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Client talks to a Jama server. It is safe for concurrent use.
type Client struct {
	client        httpClient
	baseURL       string
	username      string
	password      string
	userAgent     string
	pageSize      int
	retryAttempts int
	retryInterval time.Duration
	limiter       *rate.Limiter
	logger        *zap.Logger
	requests      *atomic.Int64
}

// NewClient constructs a Client. A nil httpClient selects an *http.Client with the default timeout.
func NewClient(client httpClient) Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return Client{
		client:        client,
		userAgent:     defaultUserAgent,
		pageSize:      defaultPageSize,
		retryAttempts: defaultRetryAttempts,
		retryInterval: defaultRetryInterval,
		logger:        zap.NewNop(),
		requests:      atomic.NewInt64(0),
	}
}

// WithBaseURL sets the server address, e.g. https://jama.example.com.
func (client Client) WithBaseURL(base string) Client {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return client
	}
	client.baseURL = strings.TrimRight(trimmed, "/") + "/" + restPathPrefix
	return client
}

// WithCredentials configures HTTP basic authentication.
func (client Client) WithCredentials(username string, password string) Client {
	client.username = username
	client.password = password
	return client
}

func (client Client) WithUserAgent(agent string) Client {
	if agent == "" {
		return client
	}
	client.userAgent = agent
	return client
}

// WithTimeout bounds every request. The underlying *http.Client is copied, never changed in place.
func (client Client) WithTimeout(duration time.Duration) Client {
	if duration <= 0 {
		return client
	}
	if shared, ok := client.client.(*http.Client); ok && shared != nil {
		cloned := *shared
		cloned.Timeout = duration
		client.client = &cloned
	}
	return client
}

// WithPageSize sets maxResults for paged listings; the server caps it at 50.
func (client Client) WithPageSize(size int) Client {
	if size <= 0 {
		return client
	}
	if size > maximumPageSize {
		size = maximumPageSize
	}
	client.pageSize = size
	return client
}

// WithRateLimit throttles requests to perSecond with the given burst. Zero disables throttling.
func (client Client) WithRateLimit(perSecond float64, burst int) Client {
	if perSecond <= 0 {
		client.limiter = nil
		return client
	}
	if burst <= 0 {
		burst = 1
	}
	client.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return client
}

// WithRetry configures how often transient failures are retried and the initial backoff interval.
func (client Client) WithRetry(attempts int, interval time.Duration) Client {
	if attempts >= 0 {
		client.retryAttempts = attempts
	}
	if interval > 0 {
		client.retryInterval = interval
	}
	return client
}

func (client Client) WithLogger(logger *zap.Logger) Client {
	if logger == nil {
		return client
	}
	client.logger = logger
	return client
}

// ListChildren returns the direct children of the item identified by ref, across all pages.
func (client Client) ListChildren(ctx context.Context, ref traverse.NodeRef) ([]traverse.NodeDescriptor, error) {
	id, idErr := parseItemID(ref)
	if idErr != nil {
		return nil, fmt.Errorf("%w: %q", idErr, ref)
	}
	var items []Item
	if err := client.getAll(ctx, fmt.Sprintf("items/%d/children", id), nil, &items); err != nil {
		return nil, fmt.Errorf("list children of item %d: %w", id, err)
	}
	descriptors := make([]traverse.NodeDescriptor, 0, len(items))
	for _, item := range items {
		descriptors = append(descriptors, item.Descriptor())
	}
	return descriptors, nil
}

// FetchTags returns the tag names of the item identified by ref. A missing item has no tags.
func (client Client) FetchTags(ctx context.Context, ref traverse.NodeRef) ([]string, error) {
	id, idErr := parseItemID(ref)
	if idErr != nil {
		return nil, fmt.Errorf("%w: %q", idErr, ref)
	}
	var tags []tag
	if err := client.getAll(ctx, fmt.Sprintf("items/%d/tags", id), nil, &tags); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			client.logger.Debug("item not found while fetching tags", zap.Int64("item", id))
			return nil, nil
		}
		return nil, fmt.Errorf("fetch tags of item %d: %w", id, err)
	}
	names := make([]string, 0, len(tags))
	for _, entry := range tags {
		names = append(names, entry.Name)
	}
	return names, nil
}

// Item fetches a single item.
func (client Client) Item(ctx context.Context, ref traverse.NodeRef) (Item, error) {
	id, idErr := parseItemID(ref)
	if idErr != nil {
		return Item{}, fmt.Errorf("%w: %q", idErr, ref)
	}
	var items []Item
	if err := client.getAll(ctx, fmt.Sprintf("items/%d", id), nil, &items); err != nil {
		return Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	if len(items) == 0 {
		return Item{}, fmt.Errorf("get item %d: %w", id, ErrItemNotFound)
	}
	return items[0], nil
}

// RootItems lists the top-level items of a project.
func (client Client) RootItems(ctx context.Context, projectID int64) ([]Item, error) {
	query := url.Values{}
	query.Set(queryProject, strconv.FormatInt(projectID, 10))
	query.Set(queryRootOnly, "true")
	var items []Item
	if err := client.getAll(ctx, "items", query, &items); err != nil {
		return nil, fmt.Errorf("list root items of project %d: %w", projectID, err)
	}
	return items, nil
}

// Projects lists every project visible to the configured user.
func (client Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := client.getAll(ctx, "projects", nil, &projects); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ProjectByKey returns the project whose projectKey matches key, ignoring case.
func (client Client) ProjectByKey(ctx context.Context, key string) (Project, error) {
	trimmed := strings.TrimSpace(key)
	projects, err := client.Projects(ctx)
	if err != nil {
		return Project{}, err
	}
	for _, project := range projects {
		if project.Key() != "" && strings.EqualFold(project.Key(), trimmed) {
			return project, nil
		}
	}
	return Project{}, fmt.Errorf("%w: %q", ErrProjectNotFound, trimmed)
}

// ItemByDocumentKey resolves a document key such as PRJ-SET-12 to the single item carrying it.
func (client Client) ItemByDocumentKey(ctx context.Context, key string) (Item, error) {
	trimmed := strings.TrimSpace(key)
	query := url.Values{}
	query.Set(queryDocumentKey, trimmed)
	var items []Item
	if err := client.getAll(ctx, "abstractitems", query, &items); err != nil {
		return Item{}, fmt.Errorf("find item %q: %w", trimmed, err)
	}
	switch len(items) {
	case 0:
		return Item{}, fmt.Errorf("find item %q: %w", trimmed, ErrItemNotFound)
	case 1:
		return items[0], nil
	default:
		return Item{}, fmt.Errorf("find item %q: %w (%d matches)", trimmed, ErrAmbiguousDocumentKey, len(items))
	}
}

// RootItemByName returns the root item of a project whose name matches, ignoring case.
func (client Client) RootItemByName(ctx context.Context, projectID int64, name string) (Item, error) {
	items, err := client.RootItems(ctx, projectID)
	if err != nil {
		return Item{}, err
	}
	trimmed := strings.TrimSpace(name)
	for _, item := range items {
		if strings.EqualFold(item.Name(), trimmed) {
			return item, nil
		}
	}
	return Item{}, fmt.Errorf("root item %q of project %d: %w", trimmed, projectID, ErrItemNotFound)
}

// envelope is the common response wrapper. Data is either an array (paged) or an object.
type envelope struct {
	Meta *responseMeta   `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// getAll follows the startAt/maxResults protocol until every page has been merged into target,
// which must point to a slice. A response without pageInfo carries a single object.
func (client Client) getAll(ctx context.Context, resource string, query url.Values, target interface{}) error {
	var merged []json.RawMessage
	startAt := 0
	for {
		pageQuery := url.Values{}
		for key, values := range query {
			pageQuery[key] = append([]string(nil), values...)
		}
		pageQuery.Set(queryStartAt, strconv.Itoa(startAt))
		pageQuery.Set(queryMaxResults, strconv.Itoa(client.pageSize))
		requestURL, buildErr := client.buildURL(resource, pageQuery)
		if buildErr != nil {
			return buildErr
		}
		body, getErr := client.get(ctx, requestURL)
		if getErr != nil {
			return getErr
		}
		var page envelope
		if decodeErr := json.Unmarshal(body, &page); decodeErr != nil {
			return fmt.Errorf("%w from %s: %v", ErrMalformedResponse, requestURL, decodeErr)
		}
		if page.Meta == nil || len(page.Data) == 0 || string(page.Data) == "null" {
			return fmt.Errorf("%w from %s: missing meta or data", ErrMalformedResponse, requestURL)
		}
		if page.Meta.PageInfo == nil {
			merged = append(merged, page.Data)
			break
		}
		var elements []json.RawMessage
		if decodeErr := json.Unmarshal(page.Data, &elements); decodeErr != nil {
			return fmt.Errorf("%w from %s: paged data is not a list: %v", ErrMalformedResponse, requestURL, decodeErr)
		}
		merged = append(merged, elements...)
		received := page.Meta.PageInfo.ResultCount
		startAt += received
		if received == 0 || startAt >= page.Meta.PageInfo.TotalResults {
			break
		}
	}
	combined, marshalErr := json.Marshal(merged)
	if marshalErr != nil {
		return marshalErr
	}
	if decodeErr := json.Unmarshal(combined, target); decodeErr != nil {
		return fmt.Errorf("%w for %s: %v", ErrMalformedResponse, resource, decodeErr)
	}
	return nil
}

// get performs one GET with throttling and retries transient failures with exponential backoff.
func (client Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var body []byte
	operation := func() error {
		if client.limiter != nil {
			if waitErr := client.limiter.Wait(ctx); waitErr != nil {
				return backoff.Permanent(waitErr)
			}
		}
		payload, err := client.getOnce(ctx, requestURL)
		if err == nil {
			body = payload
			return nil
		}
		var statusError *StatusError
		if errors.As(err, &statusError) && !statusError.retryable() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		client.logger.Debug("retrying request", zap.String("url", requestURL), zap.Error(err))
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = client.retryInterval
	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(client.retryAttempts)), ctx)
	if err := backoff.Retry(operation, retryPolicy); err != nil {
		return nil, err
	}
	return body, nil
}

func (client Client) getOnce(ctx context.Context, requestURL string) ([]byte, error) {
	request, requestErr := client.buildRequest(ctx, requestURL)
	if requestErr != nil {
		return nil, backoff.Permanent(requestErr)
	}
	if count := client.requests.Inc(); count%progressEvery == 0 {
		client.logger.Info("working", zap.Int64("requests", count))
	}
	client.logger.Debug("GET", zap.String("url", requestURL))
	response, responseErr := client.client.Do(request)
	if responseErr != nil {
		return nil, responseErr
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyLimit))
		return nil, &StatusError{StatusCode: response.StatusCode, URL: requestURL, Body: strings.TrimSpace(string(body))}
	}
	return io.ReadAll(response.Body)
}

func (client Client) buildRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if requestErr != nil {
		return nil, requestErr
	}
	if client.userAgent != "" {
		request.Header.Set(headerUserAgent, client.userAgent)
	}
	if client.username != "" || client.password != "" {
		request.SetBasicAuth(client.username, client.password)
	}
	request.Header.Set(headerAccept, acceptJSON)
	return request, nil
}

func (client Client) buildURL(resource string, query url.Values) (string, error) {
	if client.baseURL == "" {
		return "", errMissingBaseURL
	}
	parsedURL, parseErr := url.Parse(client.baseURL + strings.TrimLeft(resource, "/"))
	if parseErr != nil {
		return "", parseErr
	}
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

var _ traverse.NodeClient = Client{}
