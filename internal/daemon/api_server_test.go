package daemon

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"crate/internal/logging"
)

func TestAPIServerStartStop(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv := newAPIServer("127.0.0.1:0", handler, logging.NewNop())
	if err := srv.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	resp, err := http.Get("http://" + srv.addr() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	srv.stop(ctx)
	if srv.addr() != "" {
		t.Fatal("expected listener released")
	}
}

func TestNewAPIServerRequiresBind(t *testing.T) {
	if srv := newAPIServer("  ", http.NotFoundHandler(), logging.NewNop()); srv != nil {
		t.Fatal("expected nil server without a bind address")
	}
	var srv *apiServer
	if err := srv.start(); err != nil {
		t.Fatalf("nil server start should be a no-op, got %v", err)
	}
	srv.stop(context.Background())
}
