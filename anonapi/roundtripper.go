package anonapi

import (
	"net/http"
)

// anonRoundTripper adds the headers the mobile app sends with every anonymous API call.
type anonRoundTripper struct {
	inner http.RoundTripper
	creds Credentials
}

func (a anonRoundTripper) RoundTrip(request *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	request = request.Clone(request.Context())
	request.Header.Set("User-Agent", a.creds.UserAgent)
	request.Header.Set("X-API-Key", a.creds.APIKey)
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Content-Type", "application/json")

	inner := a.inner
	if inner == nil {
		inner = http.DefaultTransport
	}

	response, err := inner.RoundTrip(request)
	if err != nil {
		log.Debugf("%s %s failed: %v", request.Method, request.URL.Path, err)
		return response, err
	}
	log.Debugf("%s %s -> %s", request.Method, request.URL.Path, response.Status)
	return response, nil
}

var _ http.RoundTripper = &anonRoundTripper{}
