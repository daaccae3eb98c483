// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package flexquery provides an API client for the IBKR Flex Query Web Service.
//
// The Flex Query Web Service is a two-step REST API:
//  1. SendRequest: Submits a query and returns a reference code.
//  2. GetStatement: Polls with the reference code until the XML statement is ready.
//
// Both endpoints require a Flex Web Service token for authentication and
// a "Java" User-Agent header. GetStatement may return transient errors
// (e.g., 1001 server busy, 1019 statement generating) which are retried
// under a bounded backoff policy.
package flexquery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tradectl/tradectl/internal/pkg/backoff"
)

const (
	// defaultBaseURL is the IBKR Flex Web Service base URL.
	defaultBaseURL = "https://ndcdyn.interactivebrokers.com/AccountManagement/FlexWebService"
	// userAgent is the required User-Agent header for IBKR (IBKR expects "Java").
	userAgent = "Java"
)

// DefaultRetryPolicy is the polling schedule used when no policy is configured.
var DefaultRetryPolicy = backoff.Policy{
	MaxAttempts:  10,
	InitialDelay: 2 * time.Second,
	MaxDelay:     30 * time.Second,
}

// Client is the interface for downloading Flex Query statements.
type Client interface {
	// Download performs the two-step API flow (SendRequest, then GetStatement
	// polling until ready) and returns the parsed statement.
	Download(ctx context.Context, token string, queryID string) (*Statement, error)
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*client)

// ClientWithHTTPClient sets the HTTP client to use for requests.
func ClientWithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// ClientWithLogger sets the logger for the client.
func ClientWithLogger(logger *slog.Logger) ClientOption {
	return func(c *client) {
		c.logger = logger
	}
}

// ClientWithBaseURL overrides the API base URL. Used by tests.
func ClientWithBaseURL(baseURL string) ClientOption {
	return func(c *client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// ClientWithRetryPolicy sets the GetStatement polling policy.
func ClientWithRetryPolicy(policy backoff.Policy) ClientOption {
	return func(c *client) {
		c.retryPolicy = policy
	}
}

// NewClient creates a new Flex Query API client with the given options.
func NewClient(options ...ClientOption) Client {
	c := &client{
		httpClient:  http.DefaultClient,
		logger:      slog.Default(),
		baseURL:     defaultBaseURL,
		retryPolicy: DefaultRetryPolicy,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string
	retryPolicy backoff.Policy
}

// sendResponse is the XML response from the SendRequest endpoint, also
// returned by GetStatement while the statement is not ready.
type sendResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Status        string   `xml:"Status"`
	ReferenceCode string   `xml:"ReferenceCode"`
	ErrorCode     string   `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
}

func (c *client) Download(ctx context.Context, token string, queryID string) (*Statement, error) {
	// Step 1: Send the request to get a reference code.
	referenceCode, err := c.sendRequest(ctx, token, queryID)
	if err != nil {
		return nil, fmt.Errorf("sending flex query request: %w", err)
	}
	c.logger.Info("flex query request sent", "query_id", queryID, "reference_code", referenceCode)
	// Step 2: Poll for the statement using the reference code.
	data, err := c.getStatement(ctx, token, referenceCode)
	if err != nil {
		return nil, fmt.Errorf("getting flex query statement: %w", err)
	}
	statement, err := ParseStatement(data)
	if err != nil {
		return nil, fmt.Errorf("parsing flex query statement: %w", err)
	}
	return statement, nil
}

// sendRequest initiates a Flex Query and returns the reference code.
func (c *client) sendRequest(ctx context.Context, token string, queryID string) (string, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/SendRequest?v=3&t=%s&q=%s", c.baseURL, token, queryID))
	if err != nil {
		return "", err
	}
	var sendResp sendResponse
	if err := xml.Unmarshal(body, &sendResp); err != nil {
		return "", fmt.Errorf("parsing send response: %w", err)
	}
	if sendResp.Status != "Success" {
		return "", fmt.Errorf("flex query request failed: %s (code: %s)", sendResp.ErrorMessage, sendResp.ErrorCode)
	}
	return sendResp.ReferenceCode, nil
}

// getStatement polls the GetStatement endpoint under the retry policy until
// the statement is ready.
func (c *client) getStatement(ctx context.Context, token string, referenceCode string) ([]byte, error) {
	return backoff.Retry(ctx, c.retryPolicy, func(ctx context.Context, attempt int) ([]byte, bool, error) {
		if attempt > 0 {
			c.logger.Info("waiting for flex query statement", "attempt", attempt+1)
		}
		body, err := c.get(ctx, fmt.Sprintf("%s/GetStatement?v=3&t=%s&q=%s", c.baseURL, token, referenceCode))
		if err != nil {
			// Network failures are retryable within the budget.
			return nil, true, err
		}
		// A FlexStatementResponse here is an error response, not the statement.
		if strings.HasPrefix(strings.TrimSpace(string(body)), "<FlexStatementResponse") {
			var getResp sendResponse
			if err := xml.Unmarshal(body, &getResp); err != nil {
				return nil, false, fmt.Errorf("parsing get response: %w", err)
			}
			switch getResp.ErrorCode {
			// 1001: server busy. 1019: statement is being generated.
			case "1001", "1019":
				return nil, true, fmt.Errorf("statement not ready (code: %s)", getResp.ErrorCode)
			default:
				return nil, false, fmt.Errorf("flex query statement failed: %s (code: %s)", getResp.ErrorMessage, getResp.ErrorCode)
			}
		}
		return body, false, nil
	})
}

// get performs an authenticated GET and returns the response body.
func (c *client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	// IBKR requires the "Java" User-Agent header.
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
