package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeCreator struct {
	name, url string
	calls     int
}

func (f *fakeCreator) CreateProjectChannel(_ context.Context, name, url string) (string, error) {
	f.calls++
	f.name, f.url = name, url
	return "C123", nil
}

func postSigned(t *testing.T, h http.Handler, path, header, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if header != "" {
		req.Header.Set(header, ComputeHMAC([]byte(body), secret))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServerLinearProjectCreate(t *testing.T) {
	creator := &fakeCreator{}
	s := NewServer("topsecret", creator, nil, nil)

	body := `{"type":"Project","action":"create","data":{"name":"Billing","url":"https://linear.app/acme/project/billing"}}`
	w := postSigned(t, s.Handler(), "/webhook/linear", "linear-signature", "topsecret", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if creator.calls != 1 || creator.name != "Billing" || creator.url != "https://linear.app/acme/project/billing" {
		t.Fatalf("creator not invoked as expected: %+v", creator)
	}
}

func TestServerLinearBadSignature(t *testing.T) {
	creator := &fakeCreator{}
	s := NewServer("topsecret", creator, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/linear", strings.NewReader(`{}`))
	req.Header.Set("linear-signature", "deadbeef")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if creator.calls != 0 {
		t.Fatal("creator invoked despite rejected signature")
	}
}

func TestServerLinearInvalidJSON(t *testing.T) {
	s := NewServer("topsecret", nil, nil, nil)
	w := postSigned(t, s.Handler(), "/webhook/linear", "linear-signature", "topsecret", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestServerLinearIgnoresOtherEvents(t *testing.T) {
	creator := &fakeCreator{}
	s := NewServer("", creator, nil, nil)

	w := postSigned(t, s.Handler(), "/webhook/linear", "", "", `{"type":"Issue","action":"update"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if creator.calls != 0 {
		t.Fatal("creator invoked for a non-project event")
	}
}

func TestServerGitHubMergedPullRequest(t *testing.T) {
	s := NewServer("topsecret", nil, nil, nil)
	body := `{"action":"closed","pull_request":{"merged":true,"title":"Add retries","html_url":"https://github.com/acme/perch/pull/7"}}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(body))
	req.Header.Set("x-hub-signature-256", "sha256="+ComputeHMAC([]byte(body), "topsecret"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestServerVendorForwardsAlert(t *testing.T) {
	var forwarded string
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		forwarded = string(data)
	}))
	defer sink.Close()

	s := NewServer("", nil, NewForwarder(sink.URL), nil)
	w := postSigned(t, s.Handler(), "/webhooks/vercel", "", "",
		`{"type":"deployment.succeeded","payload":{"project":{"name":"perch"}}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(forwarded, "Vercel") || !strings.Contains(forwarded, "perch") {
		t.Fatalf("alert not forwarded: %q", forwarded)
	}
}

func TestServerVendorUnknownSource(t *testing.T) {
	s := NewServer("", nil, nil, nil)
	w := postSigned(t, s.Handler(), "/webhooks/pagerduty", "", "", `{}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestServerVendorSignatureEnforced(t *testing.T) {
	s := NewServer("topsecret", nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/custom", strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestServerHealthz(t *testing.T) {
	s := NewServer("", nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"healthy"`) {
		t.Fatalf("unexpected health body: %s", w.Body.String())
	}
}
