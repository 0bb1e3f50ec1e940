// Package portal talks to the data.gouv.fr REST API: it reads a dataset's
// resource list and creates or updates the remote resource that points at an
// uploaded archive.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leonkenneth/RNB-coeur/internal/logging"
)

// ErrUnexpectedStatus is returned when the portal answers with a status the
// operation does not accept.
var ErrUnexpectedStatus = errors.New("unexpected portal status")

// TimestampLayout is the wall-clock format sent in created_at and
// analysis:last-modified-at.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Resource is the subset of a portal resource the publisher reads.
type Resource struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Format string `json:"format"`
	URL    string `json:"url,omitempty"`
}

// Dataset is the subset of a portal dataset the publisher reads.
type Dataset struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Resources []Resource `json:"resources"`
}

// Checksum is the digest block of a resource payload.
type Checksum struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ResourcePayload is the body of a create or update call.
type ResourcePayload struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Type        string            `json:"type"`
	URL         string            `json:"url"`
	FileType    string            `json:"filetype"`
	Format      string            `json:"format"`
	FileSize    int64             `json:"filesize"`
	Checksum    Checksum          `json:"checksum"`
	CreatedAt   string            `json:"created_at,omitempty"`
	Extras      map[string]string `json:"extras,omitempty"`
}

// Client is a minimal data.gouv.fr API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client. A nil httpClient selects http.DefaultClient.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *Client) datasetURL(datasetID string) string {
	return fmt.Sprintf("%s/api/1/datasets/%s/", c.baseURL, datasetID)
}

func (c *Client) resourcesURL(datasetID string) string {
	return c.datasetURL(datasetID) + "resources/"
}

func (c *Client) resourceURL(datasetID, resourceID string) string {
	return c.resourcesURL(datasetID) + resourceID + "/"
}

// GetDataset fetches a dataset with its full resource list. The call is not
// authenticated.
func (c *Client) GetDataset(ctx context.Context, datasetID string) (*Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.datasetURL(datasetID), nil)
	if err != nil {
		return nil, fmt.Errorf("build dataset request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset %s: %w", datasetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("fetch dataset", resp)
	}

	var ds Dataset
	if err := json.NewDecoder(resp.Body).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", datasetID, err)
	}
	return &ds, nil
}

// CreateResource POSTs a new resource. Anything but 201 is an error.
func (c *Client) CreateResource(ctx context.Context, datasetID string, p ResourcePayload) error {
	return c.send(ctx, http.MethodPost, c.resourcesURL(datasetID), p, http.StatusCreated, "create resource")
}

// UpdateResource PUTs over an existing resource. Anything but 200 is an error.
func (c *Client) UpdateResource(ctx context.Context, datasetID, resourceID string, p ResourcePayload) error {
	logging.FromContext(ctx).Info("updating resource",
		"dataset_id", datasetID,
		"resource_id", resourceID,
		"url", c.resourceURL(datasetID, resourceID),
	)
	return c.send(ctx, http.MethodPut, c.resourceURL(datasetID, resourceID), p, http.StatusOK, "update resource")
}

func (c *Client) send(ctx context.Context, method, url string, p ResourcePayload, want int, op string) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%s: encode payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return statusError(op, resp)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return nil
}

func statusError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: %w %d: %s", op, ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

// Timestamp formats t the way the portal stores free-form dates.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
