// Package omdb looks movies up in the OMDb web API (https://www.omdbapi.com).
package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/moviebrain/internal/apperror"
	"github.com/sakif/moviebrain/internal/validator"
)

const DefaultBaseURL = "https://www.omdbapi.com/"

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client fetches movie details by title.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// response is the subset of the OMDb payload MovieBrain keeps. Every value
// arrives as a string, including "N/A" for unknown fields.
type response struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	IMDbRating string `json:"imdbRating"`
	Poster     string `json:"Poster"`
}

// New creates a Client. An API key is required.
func New(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("omdb: API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	return &Client{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Lookup fetches the movie whose title best matches title.
//
// The returned Title is OMDb's spelling, which may differ from the query in
// case or punctuation. An unknown title is apperror.ErrNotFound; a network
// failure, timeout or non-200 reply is apperror.ErrUnavailable.
func (c *Client) Lookup(ctx context.Context, title string) (validator.MovieInput, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return validator.MovieInput{}, apperror.ValidationFailed("title", "movie title is required")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return validator.MovieInput{}, fmt.Errorf("omdb: bad base URL: %w", err)
	}
	q := u.Query()
	q.Set("apikey", c.apiKey)
	q.Set("t", title)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return validator.MovieInput{}, fmt.Errorf("omdb: building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return validator.MovieInput{}, apperror.Unavailable("omdb: request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return validator.MovieInput{}, apperror.Unavailable("omdb: lookup failed",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return validator.MovieInput{}, apperror.Unavailable("omdb: decoding response", err)
	}

	if body.Response != "True" {
		return validator.MovieInput{}, apperror.NotFound("movie", title)
	}

	return validator.MovieInput{
		Title:  body.Title,
		Year:   parseYear(body.Year),
		Rating: parseRating(body.IMDbRating),
		Poster: parsePoster(body.Poster),
	}, nil
}

// parseYear takes the leading four digits: series report "2008–2013".
func parseYear(s string) int {
	if len(s) < 4 {
		return 0
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return year
}

func parseRating(s string) float64 {
	rating, err := strconv.ParseFloat(s, 64)
	if err != nil || rating < 0 || rating > 10 {
		return 0
	}
	return rating
}

func parsePoster(s string) string {
	if s == "N/A" {
		return ""
	}
	return s
}

