package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/TastingFlow/internal/models"
	"github.com/BTreeMap/TastingFlow/internal/store"
)

// mockTB records failures instead of stopping the test.
type mockTB struct {
	testing.TB
	failed   bool
	fatal    bool
	errorMsg string
}

func (m *mockTB) Helper() {}

func (m *mockTB) Errorf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func (m *mockTB) Fatalf(format string, args ...interface{}) {
	m.failed = true
	m.fatal = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{name: "matching status codes", expected: 200, actual: 200},
		{name: "different status codes", expected: 200, actual: 404, shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockTB{}
			AssertHTTPStatus(mock, tt.expected, tt.actual, "test context")
			if mock.failed != tt.shouldFail {
				t.Errorf("expected failed=%v, got %v (%s)", tt.shouldFail, mock.failed, mock.errorMsg)
			}
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		shouldFail bool
		wantCode   string
	}{
		{name: "ok with result", body: `{"status":"ok","result":{"code":"ABC234"}}`, wantCode: "ABC234"},
		{name: "error status", body: `{"status":"error","message":"nope"}`, shouldFail: true},
		{name: "invalid JSON", body: `{"status":}`, shouldFail: true},
		{name: "missing status", body: `{"result":{}}`, shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockTB{}
			rr := httptest.NewRecorder()
			rr.Body.WriteString(tt.body)

			var result struct {
				Code string `json:"code"`
			}
			DecodeEnvelope(mock, rr, models.APIStatusOK, &result)
			if mock.failed != tt.shouldFail {
				t.Errorf("expected failed=%v, got %v (%s)", tt.shouldFail, mock.failed, mock.errorMsg)
			}
			if result.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, result.Code)
			}
		})
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		body   interface{}
	}{
		{name: "GET request with no body", method: "GET", url: "/packages"},
		{name: "POST request with JSON body", method: "POST", url: "/tastings", body: map[string]int{"package_id": 1}},
		{name: "POST request with struct body", method: "POST", url: "/sessions", body: models.SignInRequest{Name: "Ana"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CreateHTTPRequest(t, tt.method, tt.url, tt.body)
			if req.Method != tt.method || req.URL.Path != tt.url {
				t.Errorf("expected %s %s, got %s %s", tt.method, tt.url, req.Method, req.URL.Path)
			}
			hasJSON := req.Header.Get("Content-Type") == "application/json"
			if hasJSON != (tt.body != nil) {
				t.Errorf("content type set=%v for body %v", hasJSON, tt.body)
			}
		})
	}
}

func TestSeedCatalog(t *testing.T) {
	st := store.NewInMemoryStore()
	cat := SeedCatalog(t, st)
	ctx := context.Background()

	pkg, err := st.GetPackage(ctx, cat.PackageID)
	if err != nil || pkg == nil || pkg.Name != "Duo" {
		t.Fatalf("seeded package missing: %+v %v", pkg, err)
	}
	bottles, err := st.ListBottlesByNames(ctx, pkg.BottleNames())
	if err != nil || len(bottles) != 2 {
		t.Fatalf("expected 2 bottles, got %+v %v", bottles, err)
	}
	tasting, err := st.GetTastingByCode(ctx, cat.TastingCode)
	if err != nil || tasting == nil || tasting.PackageID != cat.PackageID {
		t.Errorf("seeded tasting missing: %+v %v", tasting, err)
	}
}

func TestMustJSONRoundTrip(t *testing.T) {
	in := models.Participant{Name: "Ana", Email: "ana@example.com"}
	var out models.Participant
	MustUnmarshalJSON(t, MustMarshalJSON(t, in), &out)
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}
