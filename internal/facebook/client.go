package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrTokenUnavailable is returned when no page token can be derived from the user token.
var ErrTokenUnavailable = errors.New("page access token unavailable")

// APIError is a non-success answer from the Graph API.
type APIError struct {
	Status  int
	Message string
	Code    int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graph api status %d", e.Status)
	}
	return fmt.Sprintf("graph api status %d (code %d): %s", e.Status, e.Code, e.Message)
}

// Options configures a Client.
type Options struct {
	GraphURL      string
	GraphVideoURL string
	Version       string
	PageID        string
	UserToken     string
	Timeout       time.Duration
}

// Client is a minimal Graph API client for page publishing.
type Client struct {
	graphURL  string
	videoURL  string
	version   string
	pageID    string
	userToken string
	http      *http.Client
}

// NewClient creates a Graph API client.
func NewClient(opts Options) *Client {
	timeout := 2 * time.Minute
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	return &Client{
		graphURL:  strings.TrimRight(opts.GraphURL, "/"),
		videoURL:  strings.TrimRight(opts.GraphVideoURL, "/"),
		version:   opts.Version,
		pageID:    opts.PageID,
		userToken: opts.UserToken,
		http:      &http.Client{Timeout: timeout},
	}
}

type account struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

type accountsResponse struct {
	Data []account `json:"data"`
}

type idResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// PageToken exchanges the long-lived user token for a page access token via
// the account list. The entry for the configured page wins; otherwise the
// first listed page is used.
func (c *Client) PageToken(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("access_token", c.userToken)
	endpoint := fmt.Sprintf("%s/%s/me/accounts?%s", c.graphURL, c.version, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	var body accountsResponse
	if err := c.do(req, &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("%w: no pages found for user token", ErrTokenUnavailable)
	}
	for _, acc := range body.Data {
		if acc.ID == c.pageID && acc.AccessToken != "" {
			return acc.AccessToken, nil
		}
	}
	if body.Data[0].AccessToken == "" {
		return "", fmt.Errorf("%w: first page has no access token", ErrTokenUnavailable)
	}
	return body.Data[0].AccessToken, nil
}

// PostFeed creates a feed post with message and optionally attached, already uploaded photos.
func (c *Client) PostFeed(ctx context.Context, token, message string, mediaIDs []string) (string, error) {
	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", token)
	for i, id := range mediaIDs {
		ref, err := json.Marshal(map[string]string{"media_fbid": id})
		if err != nil {
			return "", err
		}
		form.Set(fmt.Sprintf("attached_media[%d]", i), string(ref))
	}

	endpoint := fmt.Sprintf("%s/%s/%s/feed", c.graphURL, c.version, c.pageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doID(req)
}

// UploadPhoto uploads path as an unpublished page photo and returns its media id.
func (c *Client) UploadPhoto(ctx context.Context, token, path string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/photos", c.graphURL, c.version, c.pageID)
	return c.upload(ctx, endpoint, path, map[string]string{
		"published":    "false",
		"access_token": token,
	})
}

// UploadVideo publishes path as a page video with description as its caption.
func (c *Client) UploadVideo(ctx context.Context, token, path, description string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/videos", c.videoURL, c.version, c.pageID)
	return c.upload(ctx, endpoint, path, map[string]string{
		"description":  description,
		"access_token": token,
	})
}

// upload streams path as the multipart "source" field.
func (c *Client) upload(ctx context.Context, endpoint, path string, fields map[string]string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	// The writer owns f; the request may return before the copy ends.
	go func() {
		defer f.Close()
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				_ = pw.CloseWithError(err)
				return
			}
		}
		part, err := mw.CreateFormFile("source", filepath.Base(path))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	id, err := c.doID(req)
	// unblock the writer goroutine if the request ended early
	_ = pr.Close()
	return id, err
}

func (c *Client) doID(req *http.Request) (string, error) {
	var body idResponse
	if err := c.do(req, &body); err != nil {
		return "", err
	}
	id := body.ID
	if id == "" {
		id = body.PostID
	}
	if id == "" {
		return "", &APIError{Status: http.StatusOK, Message: "response carried no id"}
	}
	return id, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call graph api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read graph api response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			apiErr.Message = env.Error.Message
			apiErr.Code = env.Error.Code
		} else {
			apiErr.Message = truncate(string(raw), 200)
		}
		return apiErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode graph api response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..." + strconv.Itoa(len(s)-n) + " more bytes"
}
