package anonapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const requestTimeout = 30 * time.Second

// Client fetches everything the anonymous API exposes, replaying the call
// sequence of the official mobile app.
type Client struct {
	httpClient *http.Client
	creds      Credentials
	tokens     *TokenManager
	normalizer BodyNormalizer
	plan       RefreshPlan
}

var log = logrus.StandardLogger()

func New(creds Credentials) (*Client, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	log.Debugf("anonapi New: base=%s", creds.BaseURL)
	c := &Client{
		creds:      creds,
		tokens:     NewTokenManager(creds),
		normalizer: EmptyArrayPrefix{},
		plan:       DefaultRefreshPlan,
	}
	c.httpClient = &http.Client{
		Timeout:   requestTimeout,
		Transport: anonRoundTripper{creds: creds},
	}
	return c, nil
}

// NewFromConfig creates a Client with the quirks configured in cfg.
func NewFromConfig(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	c, err := New(cfg.Credentials())
	if err != nil {
		return nil, err
	}
	c.SetRefreshPlan(cfg.Quirks.RefreshPlan())
	c.SetNormalizer(cfg.Quirks.Normalizer())
	return c, nil
}

func (c *Client) SetRefreshPlan(plan RefreshPlan) {
	c.plan = plan
}

func (c *Client) SetNormalizer(n BodyNormalizer) {
	if n == nil {
		n = NopNormalizer{}
	}
	c.normalizer = n
}

// SetTransport replaces the transport used for both token and resource requests.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = anonRoundTripper{inner: rt, creds: c.creds}
	c.tokens.SetTransport(rt)
}

func (c *Client) SetClock(clock clockwork.Clock) {
	c.tokens.SetClock(clock)
}

func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// FetchAll performs the full call sequence and returns every collection.
// Any failure aborts the sequence; no partial Bundle is returned.
func (c *Client) FetchAll(pos Position) (*Bundle, error) {
	log.Debugf("fetching all data for %f,%f", pos.Lat, pos.Lon)

	// The backend rejects the first resource call unless the token has been
	// requested several times in a row.
	if err := c.forceRefreshes(c.plan.BeforeFirstCall); err != nil {
		return nil, err
	}

	var b Bundle
	if err := getPath(c, "/models", nil, &b.Models); err != nil {
		return nil, err
	}
	if err := getPath(c, "/options", nil, &b.Options); err != nil {
		return nil, err
	}
	if err := getPath(c, "/mapping/layers", nil, &b.Parking); err != nil {
		return nil, err
	}
	if err := getPath(c, "/mapping/homezones", nil, &b.Homezones); err != nil {
		return nil, err
	}
	if err := getPath(c, "/cities", nil, &b.Cities); err != nil {
		return nil, err
	}
	if len(b.Cities) == 0 {
		return nil, &StepError{Step: "/cities", Err: NewAggregationError(ErrNoCity)}
	}

	if err := c.forceRefreshes(c.plan.BeforeVehicles); err != nil {
		return nil, err
	}

	vehiclesPath := "/availableVehicles/" + b.Cities[0].ID
	headers := map[string]string{
		"user-lat": strconv.FormatFloat(pos.Lat, 'f', -1, 64),
		"user-lon": strconv.FormatFloat(pos.Lon, 'f', -1, 64),
	}
	if err := getPath(c, vehiclesPath, headers, &b.Vehicles); err != nil {
		return nil, err
	}

	log.Debugf("fetched %d models, %d options, %d parking layers, %d homezones, %d cities, %d vehicles",
		len(b.Models), len(b.Options), len(b.Parking), len(b.Homezones), len(b.Cities), len(b.Vehicles))
	return &b, nil
}

func (c *Client) forceRefreshes(n int) error {
	for i := 0; i < n; i++ {
		if err := c.tokens.ForceRefresh(); err != nil {
			return &StepError{Step: "token", Err: err}
		}
	}
	return nil
}

// getPath issues an authorized GET and decodes the normalized body into out.
func getPath[T any](c *Client, path string, headers map[string]string, out *T) error {
	body, err := c.get(path, headers)
	if err != nil {
		return &StepError{Step: path, Err: err}
	}
	if err := json.Unmarshal(c.normalizer.Normalize(body), out); err != nil {
		return &StepError{Step: path, Err: NewParseError(path, err)}
	}
	return nil
}

func (c *Client) get(path string, headers map[string]string) ([]byte, error) {
	// Fetched right before the call since earlier steps may have outlived the token
	authorization, err := c.tokens.ValidToken()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, strings.TrimSuffix(c.creds.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, NewNetworkError(path, 0, err)
	}
	req.Header.Set("Authorization", authorization)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(path, 0, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, NewNetworkError(path, res.StatusCode, nil)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, NewNetworkError(path, res.StatusCode, err)
	}
	return body, nil
}
