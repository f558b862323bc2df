package vofile

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cadc-nrc/govospace/pkg/voerrors"
)

func TestOpenReadsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	f, err := Open(context.Background(), srv.Client(), req)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	got, _ := io.ReadAll(f.Body())
	if string(got) != "hello world" {
		t.Fatalf("body = %q, want %q", got, "hello world")
	}
}

func TestOpenFollowsRedirect(t *testing.T) {
	calls := 0
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("redirected"))
	}))
	defer final.Close()

	entry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer entry.Close()

	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	req, _ := http.NewRequest(http.MethodGet, entry.URL, nil)
	f, err := Open(context.Background(), client, req)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if calls != 1 {
		t.Fatalf("final server calls = %d, want 1", calls)
	}
	got, _ := io.ReadAll(f.Body())
	if string(got) != "redirected" {
		t.Fatalf("body = %q, want %q", got, "redirected")
	}
}

func TestOpenRetriesOn503(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	f, err := Open(context.Background(), srv.Client(), req)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestOpenMapsStatusCodes(t *testing.T) {
	cases := []struct {
		status int
	}{
		{http.StatusUnauthorized},
		{http.StatusNotFound},
		{http.StatusConflict},
		{http.StatusTeapot},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
		}))
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		_, err := Open(context.Background(), srv.Client(), req)
		if err == nil {
			t.Errorf("status %d: expected an error", c.status)
		}
		srv.Close()
	}
}

func TestOpenMaps409ToAlreadyExistsOnlyForDuplicateNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("<error>DuplicateNode</error>"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := Open(context.Background(), srv.Client(), req)
	if !voerrors.IsAlreadyExistsErr(err) {
		t.Fatalf("err = %v, want AlreadyExists", err)
	}
}

func TestOpen416IsEmptySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	f, err := Open(context.Background(), srv.Client(), req)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	got, _ := io.ReadAll(f.Body())
	if len(got) != 0 {
		t.Fatalf("body = %q, want empty", got)
	}
}

func TestOpenSetsTraceID(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Trace-ID")
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	f, err := Open(context.Background(), srv.Client(), req)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.Close()

	if gotHeader == "" {
		t.Fatal("expected X-Trace-ID header to be set")
	}
}
