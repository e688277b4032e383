package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPGateway talks to the directory service over its internal REST API.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPGateway constructs a gateway client for the given base URL.
func NewHTTPGateway(baseURL, token string, timeout time.Duration, logger zerolog.Logger) (*HTTPGateway, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("directory base url must not be empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPGateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "directory_gateway").Logger(),
	}, nil
}

func (g *HTTPGateway) GetUser(ctx context.Context, id string) (Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, ErrUserNotFound
	}

	var profile Profile
	status, err := g.get(ctx, "/internal/users/"+url.PathEscape(id), &profile)
	if err != nil {
		return Profile{}, err
	}
	if status == http.StatusNotFound {
		return Profile{}, ErrUserNotFound
	}
	if status != http.StatusOK {
		return Profile{}, fmt.Errorf("directory: unexpected status %d for user %s", status, id)
	}

	return profile, nil
}

func (g *HTTPGateway) GetUsers(ctx context.Context, ids []string) (map[string]Profile, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return map[string]Profile{}, nil
	}

	var profiles []Profile
	path := "/internal/users?ids=" + url.QueryEscape(strings.Join(cleaned, ","))
	status, err := g.get(ctx, path, &profiles)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("directory: unexpected status %d for batch lookup", status)
	}

	result := make(map[string]Profile, len(profiles))
	for _, profile := range profiles {
		result[profile.ID] = profile
	}

	return result, nil
}

func (g *HTTPGateway) get(ctx context.Context, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("directory: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("directory: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("directory: decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}
