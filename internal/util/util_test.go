package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerOptions{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	}, zap.NewNop())

	cb.RecordFailure(0)
	if !cb.CanExecute() {
		t.Fatal("breaker opened before threshold")
	}

	cb.RecordFailure(0)
	if cb.CanExecute() {
		t.Fatal("breaker should be open after reaching threshold")
	}

	status := cb.Status()
	if status.State != CircuitStateOpen {
		t.Fatalf("expected OPEN, got %s", status.State)
	}
	if status.NextRetryTime == nil {
		t.Fatal("expected next retry time while open")
	}
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerOptions{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	}, zap.NewNop())

	cb.RecordFailure(time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if state := cb.State(); state != CircuitStateHalfOpen {
		t.Fatalf("expected HALF_OPEN after timeout, got %s", state)
	}

	cb.RecordSuccess()
	if state := cb.State(); state != CircuitStateClosed {
		t.Fatalf("expected CLOSED after success, got %s", state)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerOptions{
		FailureThreshold: 5,
		ResetTimeout:     time.Hour,
	}, zap.NewNop())

	for i := 0; i < 5; i++ {
		cb.RecordFailure(time.Millisecond)
	}
	time.Sleep(5 * time.Millisecond)
	if cb.State() != CircuitStateHalfOpen {
		t.Fatal("expected HALF_OPEN")
	}

	cb.RecordFailure(0)
	if cb.State() != CircuitStateOpen {
		t.Fatal("a failure while HALF_OPEN must reopen the circuit")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerOptions{FailureThreshold: 1}, nil)
	cb.RecordFailure(0)
	cb.Reset()

	status := cb.Status()
	if status.State != CircuitStateClosed || status.FailureCount != 0 || status.NextRetryTime != nil {
		t.Fatalf("unexpected status after reset: %+v", status)
	}
}

func TestSanitizeQuery(t *testing.T) {
	cases := []struct {
		input string
		max   int
		want  string
	}{
		{input: "   ", max: 10, want: ""},
		{input: "what\x00 is\tyour\n\nstack?", max: 100, want: "what is your stack?"},
		{input: "abcdef", max: 3, want: "abc"},
		{input: "héllo wörld", max: 5, want: "héllo"},
	}

	for _, tc := range cases {
		if got := SanitizeQuery(tc.input, tc.max); got != tc.want {
			t.Errorf("SanitizeQuery(%q, %d) = %q, want %q", tc.input, tc.max, got, tc.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("portfolio", 4); got != "port..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := TruncateString("go", 4); got != "go" {
		t.Fatalf("short strings must be unchanged, got %q", got)
	}
}

func TestContainsFold(t *testing.T) {
	if !ContainsFold([]string{"Spring Boot", "Hibernate"}, "spring") {
		t.Fatal("expected case-insensitive substring match")
	}
	if ContainsFold(nil, "x") {
		t.Fatal("nil slice cannot contain anything")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != zapcore.DebugLevel {
		t.Fatal("expected debug level")
	}
	if ParseLevel("nonsense") != zapcore.InfoLevel {
		t.Fatal("expected info as default")
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "netfolio.log")

	logger, err := NewLogger("info", logFile)
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}
	logger.Info("hello from test")
	_ = logger.Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("log file missing entry: %s", data)
	}
}
