package helpscout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/freedesk/freedesk/pkg/logger"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	defaultPageDelay  = 150 * time.Millisecond

	// Fallback wait when a 429 response carries no Retry-After header
	defaultRetryAfter = 60 * time.Second
)

// Client talks to the Help Scout Mailbox API. A 429 response is waited
// out for as long as the server asks; every other failure gets a bounded
// number of retries with linearly increasing backoff.
type Client struct {
	BaseURL   string
	TokenURL  string
	AppID     string
	AppSecret string

	// MaxRetries is the total attempt budget for non-rate-limit failures
	MaxRetries int
	// RetryDelay is the backoff base, multiplied by the attempt number
	RetryDelay time.Duration
	// PageDelay is the proactive throttle between page fetches
	PageDelay time.Duration
	// Sleep is replaceable in tests to record waits instead of taking them
	Sleep func(time.Duration)

	httpClient *http.Client
	token      string
}

// NewClient creates a Client with default retry and throttle settings
func NewClient(baseURL, tokenURL, appID, appSecret string) *Client {
	return &Client{
		BaseURL:    baseURL,
		TokenURL:   tokenURL,
		AppID:      appID,
		AppSecret:  appSecret,
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
		PageDelay:  defaultPageDelay,
		Sleep:      time.Sleep,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchToken exchanges the configured app credentials for a bearer token
// via the client-credentials grant. The token is held for the client's
// lifetime; there is no mid-run refresh. Any failure is an *AuthError.
func (c *Client) FetchToken(ctx context.Context) error {
	conf := &clientcredentials.Config{
		ClientID:     c.AppID,
		ClientSecret: c.AppSecret,
		TokenURL:     c.TokenURL,
	}

	token, err := conf.Token(ctx)
	if err != nil {
		return &AuthError{Err: err}
	}

	c.token = token.AccessToken
	return nil
}

// get performs one authenticated GET and decodes the response into out.
// 429 responses are retried indefinitely after the server-supplied wait
// and do not consume the retry budget.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	attempt := 0
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return &FetchError{Endpoint: path, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		status := 0
		resp, err := c.httpClient.Do(req)
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests {
				wait := retryAfter(resp)
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				logger.WithFields(logrus.Fields{
					"endpoint": path,
					"wait":     wait.String(),
				}).Warn("Rate limited by remote API, waiting")
				c.Sleep(wait)
				continue
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				decodeErr := json.NewDecoder(resp.Body).Decode(out)
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				if decodeErr != nil {
					return &FetchError{Endpoint: path, Err: fmt.Errorf("unexpected response shape: %w", decodeErr)}
				}
				return nil
			}

			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			status = resp.StatusCode
			err = fmt.Errorf("status %d", resp.StatusCode)
		}

		attempt++
		if attempt >= c.MaxRetries {
			if status != 0 {
				return &FetchError{Endpoint: path, StatusCode: status}
			}
			return &FetchError{Endpoint: path, Err: err}
		}

		logger.WithError(err).Warnf("Request to %s failed, attempt %d of %d", path, attempt, c.MaxRetries)
		c.Sleep(c.RetryDelay * time.Duration(attempt))
	}
}

// retryAfter reads the Retry-After header in seconds
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

// ListMailboxes fetches every mailbox, walking all pages
func (c *Client) ListMailboxes(ctx context.Context) ([]Mailbox, error) {
	var all []Mailbox

	for pageNum := 1; ; pageNum++ {
		if pageNum > 1 {
			c.Sleep(c.PageDelay)
		}

		query := url.Values{}
		query.Set("page", strconv.Itoa(pageNum))

		var envelope mailboxesEnvelope
		if err := c.get(ctx, "/mailboxes", query, &envelope); err != nil {
			return nil, err
		}

		batch := envelope.Embedded.Mailboxes
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)

		if envelope.Page.Number >= envelope.Page.TotalPages {
			break
		}
	}

	return all, nil
}

// ConversationPages walks the conversations of a mailbox page by page,
// invoking fn once per non-empty batch in API order. The optional
// modifiedSince bound is passed through to the API.
func (c *Client) ConversationPages(ctx context.Context, mailboxID int64, modifiedSince string, fn func([]Conversation) error) error {
	for pageNum := 1; ; pageNum++ {
		if pageNum > 1 {
			c.Sleep(c.PageDelay)
		}

		query := url.Values{}
		query.Set("mailbox", strconv.FormatInt(mailboxID, 10))
		query.Set("status", "all")
		query.Set("page", strconv.Itoa(pageNum))
		if modifiedSince != "" {
			query.Set("modifiedSince", modifiedSince)
		}

		var envelope conversationsEnvelope
		if err := c.get(ctx, "/conversations", query, &envelope); err != nil {
			return err
		}

		batch := envelope.Embedded.Conversations
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		if envelope.Page.Number >= envelope.Page.TotalPages {
			return nil
		}
	}
}

// ListThreads fetches the full message history of a conversation
func (c *Client) ListThreads(ctx context.Context, conversationID int64) ([]Thread, error) {
	var all []Thread
	path := fmt.Sprintf("/conversations/%d/threads", conversationID)

	for pageNum := 1; ; pageNum++ {
		if pageNum > 1 {
			c.Sleep(c.PageDelay)
		}

		query := url.Values{}
		query.Set("page", strconv.Itoa(pageNum))

		var envelope threadsEnvelope
		if err := c.get(ctx, path, query, &envelope); err != nil {
			return nil, err
		}

		batch := envelope.Embedded.Threads
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)

		if envelope.Page.Number >= envelope.Page.TotalPages {
			break
		}
	}

	return all, nil
}
