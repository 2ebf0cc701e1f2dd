package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDeliverSignsPayload(t *testing.T) {
	const secret = "topsecret"

	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Gridsight-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := &Event{Type: "extract.batch.completed", JobID: "batch-abc", Timestamp: 1}
	if err := Deliver(context.Background(), srv.URL, secret, event); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}

	if !strings.HasPrefix(gotSig, "sha256=") {
		t.Fatalf("signature header = %q, want sha256= prefix", gotSig)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	if want := "sha256=" + hex.EncodeToString(mac.Sum(nil)); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
}

func TestDeliverUnsignedWithoutSecret(t *testing.T) {
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["X-Gridsight-Signature"]
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: "test"}); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if sawHeader {
		t.Error("signature header sent despite empty secret")
	}
}

func TestDeliverErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: "test"}); err == nil {
		t.Error("Deliver succeeded against a 500 endpoint")
	}
}
