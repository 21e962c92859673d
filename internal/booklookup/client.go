package booklookup

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

	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
)

const (
	defaultBaseURL      = "https://www.googleapis.com/books/v1"
	defaultLangRestrict = "pl"
	defaultMaxResults   = 10
	maxMaxResults       = 40
)

const errorBodyReadLimit int64 = 1024

var errAPIKeyRequired = errors.New("google books api key is required")

// Volume is the normalized shape of a Google Books volume.
type Volume struct {
	GoogleBooksID   string   `json:"google_books_id"`
	Title           string   `json:"title"`
	Authors         []string `json:"authors"`
	Author          string   `json:"author"`
	Publisher       *string  `json:"publisher,omitempty"`
	PublishedDate   *string  `json:"published_date,omitempty"`
	PublicationYear *int     `json:"publication_year,omitempty"`
	Description     *string  `json:"description,omitempty"`
	ISBN            *string  `json:"isbn,omitempty"`
	PageCount       *int     `json:"page_count,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	Language        *string  `json:"language,omitempty"`
	Thumbnail       *string  `json:"thumbnail,omitempty"`
	PreviewLink     *string  `json:"preview_link,omitempty"`
	InfoLink        *string  `json:"info_link,omitempty"`
}

// SearchParams tune a volume search.
type SearchParams struct {
	Query      string
	MaxResults int
	StartIndex int
}

// Service is the lookup surface exposed to the API layer.
type Service interface {
	Search(ctx context.Context, params SearchParams) ([]Volume, error)
	SearchByISBN(ctx context.Context, isbn string) (*Volume, error)
	GetVolume(ctx context.Context, volumeID string) (*Volume, error)
}

// Client calls the Google Books volumes API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	langRestrict string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the volumes API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithLangRestrict overrides the language filter applied to searches. Pass an
// empty string to search across all languages.
func WithLangRestrict(lang string) Option {
	return func(c *Client) {
		c.langRestrict = strings.TrimSpace(lang)
	}
}

// NewClient builds a Google Books client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:       trimmedKey,
		baseURL:      defaultBaseURL,
		langRestrict: defaultLangRestrict,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Search queries volumes matching the free-text query.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Volume, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is required")
	}
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("maxResults", strconv.Itoa(maxResults))
	if params.StartIndex > 0 {
		values.Set("startIndex", strconv.Itoa(params.StartIndex))
	}
	if c.langRestrict != "" {
		values.Set("langRestrict", c.langRestrict)
	}

	var apiResp volumesResponse
	if err := c.get(ctx, "volumes", values, &apiResp); err != nil {
		return nil, err
	}

	volumes := make([]Volume, 0, len(apiResp.Items))
	for _, item := range apiResp.Items {
		volumes = append(volumes, formatVolume(item))
	}
	return volumes, nil
}

// SearchByISBN looks up the single volume registered under an ISBN.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) (*Volume, error) {
	trimmed := strings.TrimSpace(isbn)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "isbn is required")
	}

	values := url.Values{}
	values.Set("q", "isbn:"+trimmed)

	var apiResp volumesResponse
	if err := c.get(ctx, "volumes", values, &apiResp); err != nil {
		return nil, err
	}
	if len(apiResp.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no volume found for this isbn")
	}
	volume := formatVolume(apiResp.Items[0])
	return &volume, nil
}

// GetVolume fetches a single volume by its Google Books id.
func (c *Client) GetVolume(ctx context.Context, volumeID string) (*Volume, error) {
	trimmed := strings.TrimSpace(volumeID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "volume id is required")
	}

	var item volumeItem
	if err := c.get(ctx, "volumes/"+url.PathEscape(trimmed), url.Values{}, &item); err != nil {
		return nil, err
	}
	volume := formatVolume(item)
	return &volume, nil
}

func (c *Client) get(ctx context.Context, path string, values url.Values, out any) error {
	values.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.baseURL, "/"), path, values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build google books request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute google books request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "volume not found")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"google books request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode google books response")
	}
	return nil
}

type volumesResponse struct {
	Items []volumeItem `json:"items"`
}

type volumeItem struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		PageCount  int      `json:"pageCount"`
		Categories []string `json:"categories"`
		Language   string   `json:"language"`
		ImageLinks struct {
			Thumbnail      string `json:"thumbnail"`
			SmallThumbnail string `json:"smallThumbnail"`
		} `json:"imageLinks"`
		PreviewLink string `json:"previewLink"`
		InfoLink    string `json:"infoLink"`
	} `json:"volumeInfo"`
}

func formatVolume(item volumeItem) Volume {
	info := item.VolumeInfo

	volume := Volume{
		GoogleBooksID: item.ID,
		Title:         info.Title,
		Authors:       info.Authors,
		Author:        strings.Join(info.Authors, ", "),
		Categories:    info.Categories,
	}
	if volume.Title == "" {
		volume.Title = "Brak tytułu"
	}
	if volume.Author == "" {
		volume.Author = "Nieznany autor"
	}
	volume.Publisher = optString(info.Publisher)
	volume.PublishedDate = optString(info.PublishedDate)
	volume.PublicationYear = yearFromDate(info.PublishedDate)
	volume.Description = optString(info.Description)
	volume.ISBN = pickISBN(info.IndustryIdentifiers)
	if info.PageCount > 0 {
		pages := info.PageCount
		volume.PageCount = &pages
	}
	volume.Language = optString(info.Language)
	thumbnail := info.ImageLinks.Thumbnail
	if thumbnail == "" {
		thumbnail = info.ImageLinks.SmallThumbnail
	}
	volume.Thumbnail = optString(thumbnail)
	volume.PreviewLink = optString(info.PreviewLink)
	volume.InfoLink = optString(info.InfoLink)
	return volume
}

// pickISBN prefers ISBN-13 over ISBN-10.
func pickISBN(identifiers []struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}) *string {
	var isbn10 string
	for _, id := range identifiers {
		switch id.Type {
		case "ISBN_13":
			value := id.Identifier
			return &value
		case "ISBN_10":
			isbn10 = id.Identifier
		}
	}
	return optString(isbn10)
}

func yearFromDate(date string) *int {
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return nil
	}
	return &year
}

func optString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
