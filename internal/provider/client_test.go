// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"task-42"}}`))
	}))
	defer srv.Close()

	c := New(Deps{
		APIURL:          srv.URL,
		AccessKeyID:     "ak",
		AccessKeySecret: "sk",
		Logger:          discardLogger(),
	})

	taskID, err := c.Submit(context.Background(), "human-b64", "cloth-b64")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if taskID != "task-42" {
		t.Fatalf("expected task-42, got %s", taskID)
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") || strings.Count(gotAuth, ".") != 2 {
		t.Fatalf("expected bearer JWT, got %q", gotAuth)
	}
	if gotBody["human_image"] != "human-b64" || gotBody["cloth_image"] != "cloth-b64" {
		t.Fatalf("unexpected wire body %v", gotBody)
	}
}

func TestSubmitProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":1234,"message":"invalid image"}`))
	}))
	defer srv.Close()

	c := New(Deps{APIURL: srv.URL, Logger: discardLogger()})

	_, err := c.Submit(context.Background(), "h", "c")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != 1234 {
		t.Fatalf("expected code 1234, got %d", apiErr.Code)
	}
}

func TestSubmitMissingTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":{}}`))
	}))
	defer srv.Close()

	c := New(Deps{APIURL: srv.URL, Logger: discardLogger()})

	if _, err := c.Submit(context.Background(), "h", "c"); err == nil {
		t.Fatal("expected error for missing task id")
	}
}

func TestStatusPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/task-42" {
			t.Errorf("expected path /task-42, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_status":"processing","progress":45}}`))
	}))
	defer srv.Close()

	c := New(Deps{APIURL: srv.URL, Logger: discardLogger()})

	raw, err := c.Status(context.Background(), "task-42")
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	var parsed struct {
		Data struct {
			TaskStatus string `json:"task_status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal passthrough: %v", err)
	}
	if parsed.Data.TaskStatus != "processing" {
		t.Fatalf("expected processing, got %s", parsed.Data.TaskStatus)
	}
}

func TestStatusInvalidPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer srv.Close()

	c := New(Deps{APIURL: srv.URL, Logger: discardLogger()})

	if _, err := c.Status(context.Background(), "task-42"); err == nil {
		t.Fatal("expected error for non-JSON status payload")
	}
}
