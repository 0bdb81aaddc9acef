// Package testutil provides common test utilities and helpers for TastingFlow tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/TastingFlow/internal/models"
	"github.com/BTreeMap/TastingFlow/internal/store"
)

// Envelope is the API response envelope with the result left undecoded.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Field   string          `json:"field,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// Catalog describes the rows written by SeedCatalog.
type Catalog struct {
	PackageID   int64
	SoloID      int64
	TastingCode string
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t testing.TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeEnvelope decodes the recorded body, checks its status field, and unmarshals the
// result into target when target is non-nil.
func DecodeEnvelope(t testing.TB, rr *httptest.ResponseRecorder, expectedStatus models.APIStatus, target interface{}) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode JSON response: %v (body %q)", err, rr.Body.String())
		return env
	}
	if env.Status != string(expectedStatus) {
		t.Errorf("expected status '%s', got '%s' (message %q)", expectedStatus, env.Status, env.Message)
	}
	if target != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, target); err != nil {
			t.Fatalf("failed to decode result: %v", err)
		}
	}
	return env
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t testing.TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// SeedCatalog writes a two-bottle package, a one-bottle package and an open tasting for the
// first one.
//
// The "Duo" package lists Malbec then Rioja. Malbec carries a text question and a multiple choice
// question with options Plum and Fig; Rioja has no questions.
func SeedCatalog(t testing.TB, st store.Store) Catalog {
	t.Helper()
	ctx := context.Background()

	duo, err := st.InsertPackage(ctx, models.Package{Name: "Duo", Description: "two reds", Bottles: "Malbec, Rioja"})
	if err != nil {
		t.Fatalf("failed to insert package: %v", err)
	}
	solo, err := st.InsertPackage(ctx, models.Package{Name: "Solo", Bottles: "Rioja"})
	if err != nil {
		t.Fatalf("failed to insert package: %v", err)
	}
	malbec, err := st.InsertBottle(ctx, models.Bottle{Name: "Malbec"})
	if err != nil {
		t.Fatalf("failed to insert bottle: %v", err)
	}
	if _, err := st.InsertBottle(ctx, models.Bottle{Name: "Rioja"}); err != nil {
		t.Fatalf("failed to insert bottle: %v", err)
	}
	questions := []models.RawQuestion{
		{BottleID: malbec.ID, Prompt: "What do you smell?", Type: "text", Position: 1},
		{BottleID: malbec.ID, Prompt: "Dominant fruit?", Type: "multiple_choice", Choices: "Plum, Fig", Position: 2},
	}
	for _, q := range questions {
		if _, err := st.InsertQuestion(ctx, q); err != nil {
			t.Fatalf("failed to insert question: %v", err)
		}
	}

	tasting := models.Tasting{Code: "DUO234", PackageID: duo.ID, HostName: "Kim", HostPhone: "15550001111", CreatedAt: time.Now().UTC()}
	if err := st.SaveTasting(ctx, tasting); err != nil {
		t.Fatalf("failed to save tasting: %v", err)
	}
	return Catalog{PackageID: duo.ID, SoloID: solo.ID, TastingCode: tasting.Code}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t testing.TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t testing.TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
