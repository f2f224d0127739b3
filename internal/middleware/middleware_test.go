package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pichost/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "/api/albums", "/api/albums"},
		{"newline injection", "/x\nFAKE 200", "/x FAKE 200"},
		{"carriage return", "a\r\nb", "a  b"},
		{"escape sequence", "a\x1b[31mb", "a[31mb"},
		{"null byte", "a\x00b", "ab"},
		{"delete char", "a\x7fb", "ab"},
		{"tab kept", "a\tb", "a\tb"},
		{"unicode kept", "Обувь", "Обувь"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogField(tt.input); got != tt.want {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	config := DefaultLoggingConfig()
	config.SkipPaths = []string{"/metrics"}

	tests := []struct {
		name   string
		path   string
		config func(c LoggingConfig) LoggingConfig
		want   bool
	}{
		{"api logged", "/api/albums", nil, false},
		{"skip path", "/metrics", nil, true},
		{"images skipped by default", "/images/a/b/c.jpg", nil, true},
		{"thumbnails skipped by default", "/thumbnails/small/a/b/c.jpg", nil, true},
		{"images logged when enabled", "/images/a/b/c.jpg", func(c LoggingConfig) LoggingConfig {
			c.LogStaticFiles = true
			return c
		}, false},
		{"health logged by default", "/healthz", nil, false},
		{"health skipped when disabled", "/healthz", func(c LoggingConfig) LoggingConfig {
			c.LogHealthChecks = false
			return c
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config
			if tt.config != nil {
				c = tt.config(c)
			}
			if got := shouldSkip(tt.path, c); got != tt.want {
				t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.1:80", "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEscapeW3CField(t *testing.T) {
	if got := escapeW3CField("curl/8.0"); got != "curl/8.0" {
		t.Errorf("escapeW3CField() = %q", got)
	}
	if got := escapeW3CField(`Mozilla/5.0 "x"`); got != `"Mozilla/5.0 ""x"""` {
		t.Errorf("escapeW3CField() = %q", got)
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/albums?x=1", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestResponseWriterRecords(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("abc"))

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want first status written", rw.statusCode)
	}
	if rw.bytesWritten != 3 {
		t.Errorf("bytesWritten = %d, want 3", rw.bytesWritten)
	}
	if rw.Unwrap() != rec {
		t.Error("Unwrap() should return the wrapped writer")
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		got := rec.Header().Get(RequestIDHeader)
		if len(got) != 36 {
			t.Errorf("generated ID %q is not a UUID", got)
		}
		if seen != got {
			t.Errorf("context ID = %q, header = %q", seen, got)
		}
	})

	t.Run("incoming reused", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("header = %q, want abc-123", got)
		}
	})

	t.Run("malformed incoming replaced", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, "bad id\nINJECTED")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		if got := rec.Header().Get(RequestIDHeader); strings.Contains(got, "INJECTED") {
			t.Errorf("malformed ID was reused: %q", got)
		}
	})
}

func TestRequestIDFromContextOutsideRequest(t *testing.T) {
	if got := RequestIDFromContext(t.Context()); got != "-" {
		t.Errorf("RequestIDFromContext() = %q, want -", got)
	}
}

func TestCompression(t *testing.T) {
	body := strings.Repeat(`{"album_name":"My_Shoes"},`, 200)

	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/image" {
			w.Header().Set("Content-Type", "image/jpeg")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		_, _ = w.Write([]byte(body))
	}))

	t.Run("json compressed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/albums", nil)
		r.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		if rec.Header().Get("Content-Encoding") != "gzip" {
			t.Fatalf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
		}
		zr, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatalf("gzip.NewReader() error = %v", err)
		}
		got, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("read gzip body: %v", err)
		}
		if string(got) != body {
			t.Error("decompressed body differs")
		}
	})

	t.Run("no accept encoding", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/albums", nil))

		if rec.Header().Get("Content-Encoding") != "" {
			t.Error("response should not be compressed")
		}
		if rec.Body.String() != body {
			t.Error("body changed")
		}
	})

	t.Run("images untouched", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/image", nil)
		r.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		if rec.Header().Get("Content-Encoding") != "" {
			t.Error("image/jpeg should not be compressed")
		}
	})
}

func TestCompressionInvalidConfigDisables(t *testing.T) {
	config := DefaultCompressionConfig()
	config.Level = 42

	handler := Compression(config)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Header().Get("Content-Encoding") != "" {
		t.Error("invalid level should disable compression")
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/api/articles/{album}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/articles/{album}", "200")
	before := testutil.ToFloat64(counter)

	for _, album := range []string{"a", "b", "c"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/articles/"+album, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("requests recorded under template = %v, want 3", got)
	}
}

func TestMetricsSkipsHealth(t *testing.T) {
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "200")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/not-routed", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("recorded = %v, want 1 (health skipped, unrouted counted)", got)
	}
}
