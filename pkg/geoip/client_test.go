package geoip

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestLookupSuccess(t *testing.T) {
	var capturedURL string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return jsonResponse(http.StatusOK, `{"status":"success","countryCode":"DE","regionName":"Berlin","city":"Berlin"}`), nil
	})

	client := NewClient(WithBaseURL("http://geo.test/json/"), WithHTTPClient(&http.Client{Transport: rt}))
	loc, err := client.Lookup(context.Background(), " 81.2.69.160 ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !strings.HasPrefix(capturedURL, "http://geo.test/json/81.2.69.160?fields=") {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if loc.CountryCode != "DE" || loc.Region != "Berlin" || loc.City != "Berlin" || loc.IP != "81.2.69.160" {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestLookupProviderFailure(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status":"fail","message":"reserved range"}`), nil
	})
	client := NewClient(WithHTTPClient(&http.Client{Transport: rt}))

	_, err := client.Lookup(context.Background(), "10.0.0.1")
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestLookupHTTPStatus(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, "slow down"), nil
	})
	client := NewClient(WithHTTPClient(&http.Client{Transport: rt}))

	_, err := client.Lookup(context.Background(), "8.8.8.8")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Unwrap() == nil || !strings.Contains(typed.Unwrap().Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestLookupRequiresIP(t *testing.T) {
	client := NewClient()
	_, err := client.Lookup(context.Background(), "")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
