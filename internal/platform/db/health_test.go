package db

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestHealthPayload_Healthy(t *testing.T) {
	stats := &PoolStats{TotalConns: 4, IdleConns: 3, AcquiredConns: 1, MaxConns: 10}

	code, body := healthPayload(stats, nil)

	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected status healthy, got %v", body["status"])
	}
	if body["service"] != "hms" {
		t.Errorf("expected service hms, got %v", body["service"])
	}
	if body["pool"] != stats {
		t.Error("expected pool snapshot to be included in the body")
	}
	if _, ok := body["error"]; ok {
		t.Error("expected no error field on a healthy payload")
	}
}

func TestHealthPayload_PingFailure(t *testing.T) {
	code, body := healthPayload(&PoolStats{}, fmt.Errorf("connection refused"))

	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if body["status"] != "unhealthy" {
		t.Errorf("expected status unhealthy, got %v", body["status"])
	}
	if body["service"] != "hms" {
		t.Errorf("expected service hms, got %v", body["service"])
	}
	if body["error"] != "connection refused" {
		t.Errorf("expected ping error in body, got %v", body["error"])
	}
}

func TestHealthPayload_PingTimeout(t *testing.T) {
	code, body := healthPayload(nil, context.DeadlineExceeded)

	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if body["error"] != "database ping timed out" {
		t.Errorf("expected timeout message, got %v", body["error"])
	}
	if body["pool"] == nil {
		t.Error("expected an empty pool snapshot, got nil")
	}
}
