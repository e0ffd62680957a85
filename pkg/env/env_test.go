package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("CS_TEST_VALUE", "  set  ")
	if got := Get("CS_TEST_VALUE", "fallback"); got != "set" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("CS_TEST_VALUE", "   ")
	if got := Get("CS_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}

func TestWorkerID(t *testing.T) {
	t.Setenv("WORKER_ID", "")
	if got := WorkerID(); got != "worker-0" {
		t.Fatalf("expected default worker id, got %q", got)
	}
	t.Setenv("WORKER_ID", "cron-2")
	if got := WorkerID(); got != "cron-2" {
		t.Fatalf("expected cron-2, got %q", got)
	}
}
