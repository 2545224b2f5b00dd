package anonapi

import (
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/h2non/gock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransport records every request before handing it to the
// (gock-intercepted) default transport.
type recordingTransport struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req.Method+" "+req.URL.Path)
	r.mu.Unlock()
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T) (*Client, *recordingTransport) {
	t.Helper()
	c, err := New(testCredentials())
	require.NoError(t, err)
	rec := &recordingTransport{}
	c.SetTransport(rec)
	return c, rec
}

func mockToken(times int) {
	gock.New(testIdentityHost).
		Post(testTokenPath).
		Times(times).
		Reply(http.StatusOK).
		File("../resources/token.json")
}

func mockResource(path string) *gock.Request {
	return gock.New(testBaseURL).
		Get(path).
		MatchHeader("Authorization", "^bearer abc$").
		MatchHeader("X-API-Key", "^api-key$").
		MatchHeader("Accept", "application/json").
		MatchHeader("User-Agent", "carshare-test/1.0")
}

func mockAllResources() {
	mockResource("/models").Reply(http.StatusOK).File("../resources/models.json")
	mockResource("/options").Reply(http.StatusOK).BodyString("[]")
	mockResource("/mapping/layers").Reply(http.StatusOK).File("../resources/mapping-layers.json")
	mockResource("/mapping/homezones").Reply(http.StatusOK).File("../resources/homezones.json")
	mockResource("/cities").Reply(http.StatusOK).File("../resources/cities.json")
}

var expectedCalls = []string{
	"POST " + "/auth/realms/anon/protocol/openid-connect/token",
	"POST " + "/auth/realms/anon/protocol/openid-connect/token",
	"GET /apiv5/models",
	"GET /apiv5/options",
	"GET /apiv5/mapping/layers",
	"GET /apiv5/mapping/homezones",
	"GET /apiv5/cities",
	"GET /apiv5/availableVehicles/city-1",
}

func TestNew_InvalidCredentials(t *testing.T) {
	creds := testCredentials()
	creds.BaseURL = ""
	_, err := New(creds)
	assert.Error(t, err)

	creds = testCredentials()
	creds.IdentityURL = "not a url"
	_, err = New(creds)
	assert.Error(t, err)

	_, err = NewFromConfig(nil)
	assert.Error(t, err)
}

func TestClient_FetchAll(t *testing.T) {
	defer gock.Off()
	log.SetLevel(logrus.DebugLevel)

	mockToken(2)
	mockAllResources()
	mockResource("/availableVehicles/city-1").
		MatchHeader("user-lat", "^49.2798$").
		MatchHeader("user-lon", "^-123.102$").
		Reply(http.StatusOK).
		File("../resources/available-vehicles.json")

	c, rec := newTestClient(t)
	bundle, err := c.FetchAll(Position{Lat: 49.2798, Lon: -123.1020})
	require.NoError(t, err)
	require.NotNil(t, bundle)

	assert.Equal(t, expectedCalls, rec.calls)
	assert.Equal(t, int64(2), c.Tokens().RefreshCount())
	assert.True(t, gock.IsDone())

	require.Len(t, bundle.Models, 2)
	assert.Equal(t, "Prius", bundle.Models[0].Name)
	assert.Empty(t, bundle.Options)
	require.Len(t, bundle.Parking, 1)
	require.NotNil(t, bundle.Parking[0].Content)
	assert.Len(t, bundle.Parking[0].Content.Features, 1)
	require.Len(t, bundle.Homezones, 1)
	assert.Equal(t, "FREE_FLOATING", bundle.Homezones[0].ServiceType)
	require.Len(t, bundle.Cities, 1)
	assert.Equal(t, "city-1", bundle.Cities[0].ID)
	require.Len(t, bundle.Vehicles, 3)
	assert.Equal(t, "veh-500", bundle.Vehicles[0].Description.ID)
	for _, v := range bundle.Vehicles {
		assert.Nil(t, v.Distance)
	}

	collections := bundle.Collections()
	assert.Equal(t, "vehicles", DataNames[5])
	assert.Equal(t, bundle.Vehicles, collections[5])
	assert.Equal(t, bundle.Models, collections[0])
}

func TestClient_FetchAll_NoCity(t *testing.T) {
	defer gock.Off()

	mockToken(2)
	mockResource("/models").Reply(http.StatusOK).File("../resources/models.json")
	mockResource("/options").Reply(http.StatusOK).BodyString("[]")
	mockResource("/mapping/layers").Reply(http.StatusOK).BodyString("[]")
	mockResource("/mapping/homezones").Reply(http.StatusOK).BodyString("[]")
	mockResource("/cities").Reply(http.StatusOK).BodyString("[]")

	c, rec := newTestClient(t)
	bundle, err := c.FetchAll(DefaultPosition)
	require.Error(t, err)
	assert.Nil(t, bundle)

	var aggErr *AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, "no city returned", aggErr.Reason)
	assert.ErrorIs(t, err, ErrNoCity)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "/cities", stepErr.Step)

	for _, call := range rec.calls {
		assert.NotContains(t, call, "availableVehicles")
	}
	assert.Len(t, rec.calls, 7)
}

func TestClient_FetchAll_EmptyArrayPrefix(t *testing.T) {
	defer gock.Off()

	mockToken(2)
	mockResource("/models").Reply(http.StatusOK).BodyString(`[][{"id":114,"name":"Prius"}]`)
	mockResource("/options").Reply(http.StatusOK).BodyString("[]")
	mockResource("/mapping/layers").Reply(http.StatusOK).BodyString("[][]")
	mockResource("/mapping/homezones").Reply(http.StatusOK).BodyString("[]")
	mockResource("/cities").Reply(http.StatusOK).BodyString(`[][{"id":"city-1","name":"Vancouver"}]`)
	mockResource("/availableVehicles/city-1").Reply(http.StatusOK).BodyString("[]")

	c, _ := newTestClient(t)
	bundle, err := c.FetchAll(DefaultPosition)
	require.NoError(t, err)
	require.Len(t, bundle.Models, 1)
	assert.Equal(t, 114, bundle.Models[0].ID)
	assert.Empty(t, bundle.Parking)
	assert.Equal(t, "Vancouver", bundle.Cities[0].Name)
}

func TestClient_FetchAll_CityTimestampWithoutColon(t *testing.T) {
	defer gock.Off()

	mockToken(2)
	mockResource("/models").Reply(http.StatusOK).BodyString("[]")
	mockResource("/options").Reply(http.StatusOK).BodyString("[]")
	mockResource("/mapping/layers").Reply(http.StatusOK).BodyString("[]")
	mockResource("/mapping/homezones").Reply(http.StatusOK).BodyString("[]")
	mockResource("/cities").Reply(http.StatusOK).
		BodyString(`[{"id":"city-1","name":"Vancouver","termsOfUseUpdateDatetime":"2023-05-01T00:00:00.000+0000"}]`)
	mockResource("/availableVehicles/city-1").Reply(http.StatusOK).BodyString("[]")

	c, _ := newTestClient(t)
	bundle, err := c.FetchAll(DefaultPosition)
	require.NoError(t, err)
	require.Len(t, bundle.Cities, 1)
	require.NotNil(t, bundle.Cities[0].TermsOfUseUpdateDatetime)
	assert.Equal(t, "2023-05-01T00:00:00.000+0000", *bundle.Cities[0].TermsOfUseUpdateDatetime)
	assert.True(t, gock.IsDone())
}

func TestClient_FetchAll_PrefixRejectedWithoutNormalizer(t *testing.T) {
	defer gock.Off()

	mockToken(2)
	mockResource("/models").Reply(http.StatusOK).BodyString(`[][{"id":114,"name":"Prius"}]`)

	c, _ := newTestClient(t)
	c.SetNormalizer(NopNormalizer{})
	_, err := c.FetchAll(DefaultPosition)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "/models", parseErr.Path)
}

func TestClient_FetchAll_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func()
		step      string
		check     func(t *testing.T, err error)
		callCount int
	}{
		{
			name: "token endpoint rejects client",
			setup: func() {
				gock.New(testIdentityHost).Post(testTokenPath).Reply(http.StatusUnauthorized)
			},
			step: "token",
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				require.True(t, errors.As(err, &authErr))
				assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
			},
			callCount: 1,
		},
		{
			name: "resource endpoint fails",
			setup: func() {
				mockToken(2)
				mockResource("/models").Reply(http.StatusOK).File("../resources/models.json")
				mockResource("/options").Reply(http.StatusInternalServerError)
			},
			step: "/options",
			check: func(t *testing.T, err error) {
				var netErr *NetworkError
				require.True(t, errors.As(err, &netErr))
				assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
				assert.Equal(t, "/options", netErr.Path)
			},
			callCount: 4,
		},
		{
			name: "malformed body",
			setup: func() {
				mockToken(2)
				mockResource("/models").Reply(http.StatusOK).File("../resources/models.json")
				mockResource("/options").Reply(http.StatusOK).BodyString("[]")
				mockResource("/mapping/layers").Reply(http.StatusOK).BodyString("<html>maintenance</html>")
			},
			step: "/mapping/layers",
			check: func(t *testing.T, err error) {
				var parseErr *ParseError
				require.True(t, errors.As(err, &parseErr))
			},
			callCount: 5,
		},
		{
			name: "unexpected shape",
			setup: func() {
				mockToken(2)
				mockResource("/models").Reply(http.StatusOK).BodyString(`{"models":[]}`)
			},
			step: "/models",
			check: func(t *testing.T, err error) {
				var parseErr *ParseError
				require.True(t, errors.As(err, &parseErr))
			},
			callCount: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.setup()

			c, rec := newTestClient(t)
			bundle, err := c.FetchAll(DefaultPosition)
			require.Error(t, err)
			assert.Nil(t, bundle)

			var stepErr *StepError
			require.True(t, errors.As(err, &stepErr))
			assert.Equal(t, tt.step, stepErr.Step)
			tt.check(t, err)
			assert.Len(t, rec.calls, tt.callCount)
		})
	}
}

func TestClient_FetchAll_RefreshBeforeVehicles(t *testing.T) {
	defer gock.Off()

	mockToken(3)
	mockAllResources()
	mockResource("/availableVehicles/city-1").Reply(http.StatusOK).BodyString("[]")

	c, rec := newTestClient(t)
	c.SetRefreshPlan(RefreshPlan{BeforeFirstCall: 2, BeforeVehicles: 1})
	_, err := c.FetchAll(DefaultPosition)
	require.NoError(t, err)

	expected := append([]string{}, expectedCalls[:7]...)
	expected = append(expected, expectedCalls[0], expectedCalls[7])
	assert.Equal(t, expected, rec.calls)
	assert.Equal(t, int64(3), c.Tokens().RefreshCount())
	assert.True(t, gock.IsDone())
}
