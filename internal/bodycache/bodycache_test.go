// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package bodycache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCaptureBuffersAndRestores(t *testing.T) {
	t.Parallel()

	body := `{"run_id":"r-1"}`
	var cached []byte
	var cachedOK bool
	var downstream string

	handler := Capture(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cached, cachedOK = FromContext(r.Context())
		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading restored body: %v", err)
		}
		downstream = string(b)
	}))

	r := httptest.NewRequest("POST", "/api-ml/callbacks", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if !cachedOK {
		t.Fatal("no cached body in context")
	}
	if string(cached) != body {
		t.Errorf("cached = %q, want %q", cached, body)
	}
	if downstream != body {
		t.Errorf("restored body = %q, want %q", downstream, body)
	}
}

func TestCaptureSkipsReadMethods(t *testing.T) {
	t.Parallel()

	for _, method := range []string{"GET", "HEAD", "DELETE", "OPTIONS"} {
		var ok bool
		handler := Capture(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok = FromContext(r.Context())
		}))
		r := httptest.NewRequest(method, "/api/datasets", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if ok {
			t.Errorf("%s request had a cached body", method)
		}
	}
}

func TestCaptureRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	handler := Capture(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran for oversized body")
	}))

	r := httptest.NewRequest("POST", "/api-ml/callbacks", strings.NewReader(strings.Repeat("x", MaxBodyBytes+1)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestFromContextEmpty(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/api-ml/callbacks", nil)
	if _, ok := FromContext(r.Context()); ok {
		t.Error("FromContext reported a body without the middleware")
	}
}
