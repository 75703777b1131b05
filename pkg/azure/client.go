// Package azure is a typed client for the small slice of the Azure Resource
// Manager REST API this repository provisions: resource groups, storage
// accounts, container registries and container instances. Authentication is
// the service-principal client-credentials flow, transport retries are
// delegated to go-retryablehttp and long-running operations are polled with
// bounded backoff.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// maxResponseBody caps how much of any single ARM response is read.
const maxResponseBody = 4 << 20

// Client talks to the resource-manager API of a single subscription.
type Client struct {
	subscriptionID string
	endpoint       string
	hc             *http.Client
	log            *logrus.Entry
}

type Opt func(*Client)

// WithHTTPClient replaces the authenticated retrying client, used by tests
// to talk to an httptest server without a token exchange.
func WithHTTPClient(hc *http.Client) Opt {
	return func(c *Client) {
		c.hc = hc
	}
}

func WithLogger(log *logrus.Entry) Opt {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(cfg Config, opts ...Opt) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("azure credentials not fully set: %w", err)
	}
	c := &Client{
		subscriptionID: cfg.SubscriptionID,
		endpoint:       strings.TrimSuffix(cfg.resourceManagerEndpoint(), "/"),
		log:            logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc == nil {
		c.hc = newAuthenticatedClient(cfg, c.log)
	}
	return c, nil
}

// SubscriptionID returns the subscription the client is scoped to.
func (c *Client) SubscriptionID() string {
	return c.subscriptionID
}

func newAuthenticatedClient(cfg Config, log *logrus.Entry) *http.Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 4
	retry.RetryWaitMin = time.Second
	retry.RetryWaitMax = 30 * time.Second
	retry.Logger = retryLogger{log: log}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimSuffix(cfg.authorityHost(), "/"), cfg.TenantID),
		Scopes:       []string{cfg.resourceManagerEndpoint() + "/.default"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// Token requests go through the retrying client as well.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, retry.StandardClient())

	return &http.Client{
		Timeout: 2 * time.Minute,
		Transport: &oauth2.Transport{
			Source: creds.TokenSource(tokenCtx),
			Base:   &retryablehttp.RoundTripper{Client: retry},
		},
	}
}

// retryLogger lets go-retryablehttp speak logrus.
type retryLogger struct {
	log *logrus.Entry
}

func (l retryLogger) format(msg string, keysAndValues []interface{}) string {
	builder := strings.Builder{}
	builder.WriteString(msg)
	for _, kv := range keysAndValues {
		builder.WriteString(" ")
		builder.WriteString(fmt.Sprintf("%v", kv))
	}
	return builder.String()
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error(l.format(msg, keysAndValues))
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info(l.format(msg, keysAndValues))
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug(l.format(msg, keysAndValues))
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn(l.format(msg, keysAndValues))
}

var _ retryablehttp.LeveledLogger = retryLogger{}

// armResponse is what the request helpers hand back to the per-service
// methods: enough to drive long-running-operation polling.
type armResponse struct {
	status int
	header http.Header
	body   []byte
}

// do issues a request against a subscription-relative path, marshaling in as
// the JSON body when non-nil and unmarshaling the response into out when
// non-nil. Responses with status >= 400 are turned into *APIError.
func (c *Client) do(ctx context.Context, method, path, apiVersion string, query url.Values, in, out interface{}) (*armResponse, error) {
	u, err := url.Parse(c.endpoint + path)
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}
	q := u.Query()
	for key, values := range query {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	q.Set("api-version", apiVersion)
	u.RawQuery = q.Encode()
	return c.doURL(ctx, method, u.String(), in, out)
}

// doURL is do for absolute URLs: nextLink pages and operation-status
// endpoints already carry their own query string.
func (c *Client) doURL(ctx context.Context, method, rawURL string, in, out interface{}) (*armResponse, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return &armResponse{status: resp.StatusCode, header: resp.Header, body: data}, nil
}
