// Package names resolves opaque player identifiers to display names through a
// remote name-history service, backed by a cache file that persists across runs.
package names

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
)

// DefaultEndpoint is the name-history service. %s is replaced by the owner id.
const DefaultEndpoint = "https://api.mojang.com/user/profiles/%s/names"

// DefaultUserAgent is the User-Agent header sent with lookups.
const DefaultUserAgent = "zonegen/1.0"

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a lookup response is read.
const maxResponseBytes = 1 << 20

// Lookup failures. All of them are soft: the owner simply stays unnamed.
var (
	ErrNotArray       = errors.New("root is not a list")
	ErrEmptyHistory   = errors.New("root is empty list")
	ErrEntryNotObject = errors.New("selected entry is not an object")
	ErrMissingName    = errors.New("selected entry doesn't have a name field")
)

// PickPolicy selects which element of the name history is the display name.
type PickPolicy string

const (
	// PickFirst takes the oldest recorded name.
	PickFirst PickPolicy = "first"

	// PickLast takes the most recent name.
	PickLast PickPolicy = "last"
)

// Valid reports whether the policy is known.
func (policy PickPolicy) Valid() bool {
	return policy == PickFirst || policy == PickLast
}

// HTTPClient is an interface matching the Do method of *http.Client.
// This allows injection of mock clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// LookupConfig holds configuration for a LookupClient.
type LookupConfig struct {
	// Endpoint is the URL template; %s is replaced by the owner id.
	Endpoint string

	// Pick selects the first or last entry of the returned history.
	Pick PickPolicy

	// Timeout bounds each lookup. A timeout is a soft failure.
	Timeout time.Duration

	// HTTPClient is the underlying HTTP client. If nil, http.DefaultClient is used.
	HTTPClient HTTPClient

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// DefaultLookupConfig returns a LookupConfig with the defaults above.
func DefaultLookupConfig() LookupConfig {
	return LookupConfig{
		Endpoint:  DefaultEndpoint,
		Pick:      PickLast,
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// LookupClient queries the name-history service.
type LookupClient struct {
	httpClient HTTPClient
	endpoint   string
	pick       PickPolicy
	timeout    time.Duration
	userAgent  string
}

// NewLookupClient creates a LookupClient, filling unset fields with defaults.
func NewLookupClient(config LookupConfig) *LookupClient {
	defaults := DefaultLookupConfig()

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = defaults.Endpoint
	}
	pick := config.Pick
	if !pick.Valid() {
		pick = defaults.Pick
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaults.Timeout
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaults.UserAgent
	}

	return &LookupClient{
		httpClient: httpClient,
		endpoint:   endpoint,
		pick:       pick,
		timeout:    timeout,
		userAgent:  userAgent,
	}
}

// URLFor returns the lookup URL for an owner id.
func (lookupClient *LookupClient) URLFor(ownerID string) string {
	if strings.Contains(lookupClient.endpoint, "%s") {
		return fmt.Sprintf(lookupClient.endpoint, ownerID)
	}
	return strings.TrimRight(lookupClient.endpoint, "/") + "/" + ownerID
}

// Lookup fetches the name history for an owner id and returns the selected
// name. Every failure is returned as an error wrapping the request URL.
func (lookupClient *LookupClient) Lookup(ctx context.Context, ownerID string) (string, error) {
	lookupURL := lookupClient.URLFor(ownerID)

	ctx, cancel := context.WithTimeout(ctx, lookupClient.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", lookupURL, err)
	}
	request.Header.Set("User-Agent", lookupClient.userAgent)
	request.Header.Set("Accept", "application/json")

	response, err := lookupClient.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", lookupURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("%s returned HTTP %d", lookupURL, response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", lookupURL, err)
	}

	name, err := pickName(body, lookupClient.pick)
	if err != nil {
		return "", fmt.Errorf("%s: %w", lookupURL, err)
	}
	return name, nil
}

// pickName extracts the display name from a name-history response body.
func pickName(body []byte, pick PickPolicy) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if !bytes.HasPrefix(trimmed, []byte("[")) {
		return "", ErrNotArray
	}

	var history []json.RawMessage
	if err := json.Unmarshal(trimmed, &history); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotArray, err)
	}
	if len(history) == 0 {
		return "", ErrEmptyHistory
	}

	selected := history[len(history)-1]
	if pick == PickFirst {
		selected = history[0]
	}

	selected = bytes.TrimSpace(selected)
	if !bytes.HasPrefix(selected, []byte("{")) {
		return "", ErrEntryNotObject
	}

	var entry map[string]json.RawMessage
	if err := json.Unmarshal(selected, &entry); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntryNotObject, err)
	}

	rawName, found := entry["name"]
	if !found {
		return "", ErrMissingName
	}
	var name string
	if err := json.Unmarshal(rawName, &name); err != nil || name == "" {
		return "", ErrMissingName
	}
	return name, nil
}
