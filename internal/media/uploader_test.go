// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/klairvoyant/raven-tui/internal/api"
	"github.com/klairvoyant/raven-tui/internal/model"
)

// fakeIssuer issues targets pointing at a local httptest server. Files whose
// name appears in fail are refused at issue time.
type fakeIssuer struct {
	baseURL string
	fail    map[string]bool
	issued  atomic.Int32
}

func (f *fakeIssuer) CreateUploadTarget(ctx context.Context, filename, contentType string) (api.UploadTarget, error) {
	f.issued.Add(1)
	if f.fail[filename] {
		return api.UploadTarget{}, errors.New("backend refused target")
	}
	return api.UploadTarget{
		URL:       f.baseURL + "/put/" + filename,
		PublicURL: "https://cdn.example.com/" + filename,
	}, nil
}

func newStorageServer(t *testing.T, failPaths map[string]int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var puts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		puts.Add(1)
		if code, ok := failPaths[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &puts
}

func TestUploadAllOrdersParts(t *testing.T) {
	srv, _ := newStorageServer(t, nil)
	issuer := &fakeIssuer{baseURL: srv.URL}
	up := NewUploader(issuer, nil)

	files := []File{
		{Name: "a.png", ContentType: "image/png", Content: []byte("png")},
		{Name: "b.mp4", ContentType: "video/mp4", Content: []byte("mp4")},
		{Name: "c.pdf", ContentType: "application/pdf", Content: []byte("pdf")},
	}

	parts, err := up.UploadAll(context.Background(), files)
	if err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}

	wantKinds := []model.PartKind{model.KindImage, model.KindVideo, model.KindDocument}
	for i, p := range parts {
		if p.Kind != wantKinds[i] {
			t.Errorf("part %d: kind = %q, want %q", i, p.Kind, wantKinds[i])
		}
		if !strings.HasSuffix(p.Text, files[i].Name) {
			t.Errorf("part %d: url = %q, want suffix %q", i, p.Text, files[i].Name)
		}
		if p.MimeType != files[i].ContentType {
			t.Errorf("part %d: mime = %q, want %q", i, p.MimeType, files[i].ContentType)
		}
	}
}

func TestUploadAllFailureIsAllOrNothing(t *testing.T) {
	srv, _ := newStorageServer(t, map[string]int{"/put/b.png": http.StatusForbidden})
	issuer := &fakeIssuer{baseURL: srv.URL}
	up := NewUploader(issuer, nil)

	files := []File{
		{Name: "a.png", ContentType: "image/png", Content: []byte("a")},
		{Name: "b.png", ContentType: "image/png", Content: []byte("b")},
		{Name: "c.png", ContentType: "image/png", Content: []byte("c")},
	}

	parts, err := up.UploadAll(context.Background(), files)
	if err == nil {
		t.Fatal("expected error when one upload fails")
	}
	if parts != nil {
		t.Errorf("expected no parts on failure, got %d", len(parts))
	}

	var ue *UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UploadError, got %T", err)
	}
	if ue.Filename != "b.png" {
		t.Errorf("Filename = %q, want %q", ue.Filename, "b.png")
	}
}

func TestUploadAllIssuerFailure(t *testing.T) {
	srv, puts := newStorageServer(t, nil)
	issuer := &fakeIssuer{baseURL: srv.URL, fail: map[string]bool{"a.png": true}}
	up := NewUploader(issuer, nil)

	files := []File{{Name: "a.png", ContentType: "image/png", Content: []byte("a")}}
	if _, err := up.UploadAll(context.Background(), files); err == nil {
		t.Fatal("expected error when issuer refuses")
	}
	if puts.Load() != 0 {
		t.Errorf("expected no PUT after issuer refusal, got %d", puts.Load())
	}
}

func TestUploadAllEmpty(t *testing.T) {
	up := NewUploader(&fakeIssuer{}, nil)
	parts, err := up.UploadAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("UploadAll(nil): %v", err)
	}
	if parts != nil {
		t.Errorf("expected nil parts, got %v", parts)
	}
}

func TestCheckTooManyAttachments(t *testing.T) {
	issuer := &fakeIssuer{}
	up := NewUploader(issuer, nil)

	files := make([]File, DefaultMaxAttachments+1)
	for i := range files {
		files[i] = File{Name: "f" + strconv.Itoa(i), ContentType: "image/png", Content: []byte("x")}
	}

	_, err := up.UploadAll(context.Background(), files)
	if !errors.Is(err, ErrTooManyAttachments) {
		t.Fatalf("expected ErrTooManyAttachments, got %v", err)
	}
	if issuer.issued.Load() != 0 {
		t.Errorf("guardrail check must run before any network call, issued %d targets", issuer.issued.Load())
	}
}

func TestCheckFileTooLarge(t *testing.T) {
	issuer := &fakeIssuer{}
	up := NewUploader(issuer, &Config{MaxFileSize: 8})

	files := []File{{Name: "big.bin", ContentType: "application/octet-stream", Content: bytes.Repeat([]byte("x"), 9)}}
	_, err := up.UploadAll(context.Background(), files)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if issuer.issued.Load() != 0 {
		t.Errorf("guardrail check must run before any network call, issued %d targets", issuer.issued.Load())
	}
}

func TestFileKind(t *testing.T) {
	tests := []struct {
		contentType string
		want        model.PartKind
	}{
		{"image/png", model.KindImage},
		{"video/mp4", model.KindVideo},
		{"audio/mpeg", model.KindAudio},
		{"application/pdf", model.KindDocument},
		{"text/plain", model.KindDocument},
		{"", model.KindOther},
	}
	for _, tt := range tests {
		f := File{ContentType: tt.contentType}
		if got := f.Kind(); got != tt.want {
			t.Errorf("Kind(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}
