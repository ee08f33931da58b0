package httputil

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/graphpatch/pkg/errors"
)

var (
	errTransient = fmt.Errorf("%w: connection reset", ErrNetwork)
	errRejected  = &errors.ServerError{StatusCode: 422, Message: `{"error":"quota exceeded"}`}
)

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", errTransient, true},
		{"wrapped network", fmt.Errorf("fetch: %w", errTransient), true},
		{"5xx", &errors.ServerError{StatusCode: 503}, true},
		{"4xx", errRejected, false},
		{"not found", fmt.Errorf("%w: status 404", ErrNotFound), false},
		{"other", stderrors.New("parse"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicyDo(t *testing.T) {
	ctx := context.Background()
	p := Policy{Attempts: 3, Delay: time.Millisecond}

	tests := []struct {
		name      string
		failFor   int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"success", 0, nil, 1, false},
		{"permanent", 3, errRejected, 1, true},
		{"eventual success", 2, errTransient, 3, false},
		{"exhausted", 5, errTransient, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := p.Do(ctx, func() error {
				calls++
				if calls <= tt.failFor {
					return tt.err
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err != tt.err {
				t.Errorf("err = %v, want the last failure unchanged", err)
			}
		})
	}
}

func TestPolicyDoZeroAttempts(t *testing.T) {
	calls := 0
	_ = Policy{}.Do(context.Background(), func() error { calls++; return errTransient })
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPolicyDoContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Policy{Attempts: 3, Delay: time.Hour}.Do(ctx, func() error { return errTransient })
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPersistenceError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    errors.Code
		message string
	}{
		{"network", errTransient, errors.ErrCodePersistenceNetwork, "save overrides"},
		{"json message", errRejected, errors.ErrCodePersistenceServer, "quota exceeded"},
		{"plain message", &errors.ServerError{StatusCode: 500, Message: "disk full"}, errors.ErrCodePersistenceServer, "disk full"},
		{"not found", fmt.Errorf("%w: status 404", ErrNotFound), errors.ErrCodePersistenceServer, "endpoint not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PersistenceError(tt.err, "save overrides")
			if !errors.Is(err, tt.code) {
				t.Errorf("code = %s, want %s", errors.GetCode(err), tt.code)
			}
			if msg := errors.UserMessage(err); !strings.Contains(msg, tt.message) {
				t.Errorf("message = %q, want %q", msg, tt.message)
			}
			if !stderrors.Is(err, tt.err) {
				t.Error("cause not preserved")
			}
		})
	}
	if PersistenceError(nil, "save") != nil {
		t.Error("nil error should stay nil")
	}
}
