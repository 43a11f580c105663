package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/akozyrev/factstack/internal/core/domain"
)

func TestClassifyNATSErrorContextCancel(t *testing.T) {
	class := classifyNATSError(context.Canceled)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must not retry or trip the breaker: %+v", class)
	}
}

func TestClassifyNATSErrorConnectivity(t *testing.T) {
	for _, err := range []error{nats.ErrNoServers, nats.ErrTimeout, nats.ErrConnectionClosed, nats.ErrDisconnected} {
		class := classifyNATSError(err)
		if !class.Retryable || !class.RecordFailure {
			t.Fatalf("connectivity error %v must be retryable: %+v", err, class)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	wrapped := wrapTemporaryIfNeeded(nats.ErrTimeout)
	if !domain.IsKind(wrapped, domain.ErrTemporary) {
		t.Fatalf("retryable error must surface as temporary, got %v", wrapped)
	}

	plain := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(plain); domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("non-retryable error must pass through, got %v", got)
	}
}
