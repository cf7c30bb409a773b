package scoring

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type capturedRequest struct {
	path   string
	header http.Header
	values map[string][]string
	files  int
}

func newFacePPServer(t *testing.T, status int, body string) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	captured := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		select {
		case captured <- capturedRequest{
			path:   r.URL.Path,
			header: r.Header.Clone(),
			values: r.MultipartForm.Value,
			files:  len(r.MultipartForm.File["image_file"]),
		}:
		default:
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestFacePPClientAveragesBeautyScores(t *testing.T) {
	srv, requests := newFacePPServer(t, http.StatusOK,
		`{"faces":[{"attributes":{"beauty":{"male_score":80.0,"female_score":85.0}}}]}`)
	c := NewFacePPClient("key", "secret", srv.URL, srv.Client())

	score, err := c.Score(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 82.5 {
		t.Fatalf("expected 82.5, got %v", score)
	}

	req := <-requests
	if req.path != "/detect" {
		t.Fatalf("expected /detect, got %s", req.path)
	}
	if req.header.Get("Max-Image-Pixels") != maxImagePixels {
		t.Fatalf("missing Max-Image-Pixels header")
	}
	if req.values["api_key"][0] != "key" || req.values["api_secret"][0] != "secret" || req.values["return_attributes"][0] != "beauty" {
		t.Fatalf("unexpected form values %v", req.values)
	}
	if req.files != 1 {
		t.Fatalf("expected image_file upload")
	}
}

func TestFacePPClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"no faces", http.StatusOK, `{"faces":[]}`, KindContent},
		{"face without beauty", http.StatusOK, `{"faces":[{"attributes":{}}]}`, KindContent},
		{"concurrency limit", http.StatusForbidden, `{"error_message":"CONCURRENCY_LIMIT_EXCEEDED"}`, KindTransient},
		{"server error", http.StatusBadGateway, `oops`, KindTransient},
		{"bad image", http.StatusBadRequest, `{"error_message":"IMAGE_ERROR_UNSUPPORTED_FORMAT: image_file"}`, KindContent},
		{"bad credentials", http.StatusUnauthorized, `{"error_message":"AUTHENTICATION_ERROR"}`, KindUnexpected},
		{"malformed json", http.StatusOK, `{"faces":`, KindUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newFacePPServer(t, tt.status, tt.body)
			c := NewFacePPClient("k", "s", srv.URL, srv.Client())

			_, err := c.Score(context.Background(), []byte("jpeg"))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.want {
				t.Fatalf("expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}

func TestFacePPClientUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewFacePPClient("k", "s", url, nil)
	_, err := c.Score(context.Background(), []byte("jpeg"))
	if KindOf(err) != KindTransient {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestClassifyResponseUsesPlainBody(t *testing.T) {
	err := ClassifyResponse(http.StatusForbidden, []byte("CONCURRENCY_LIMIT_EXCEEDED"))
	if err.Kind != KindTransient {
		t.Fatalf("expected transient for plain marker, got %s", err.Kind)
	}
	if KindOf(nil) != KindUnexpected {
		t.Fatal("expected nil error to classify as unexpected")
	}
}
