package httputil

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/matzehuels/graphpatch/pkg/errors"
)

// Policy is a retry schedule for transient request failures.
type Policy struct {
	Attempts int
	Delay    time.Duration // before the second attempt; doubles afterwards
}

// DefaultPolicy makes three attempts, waiting one and then two seconds.
var DefaultPolicy = Policy{Attempts: 3, Delay: time.Second}

// Transient reports whether a request that failed with err may succeed when
// repeated: transport failures and 5xx answers.
func Transient(err error) bool {
	if stderrors.Is(err, ErrNetwork) {
		return true
	}
	var se *errors.ServerError
	return stderrors.As(err, &se) && se.StatusCode >= http.StatusInternalServerError
}

// Do runs fn until it succeeds, fails with a non-transient error or the
// attempts are used up. The last error is returned unchanged; a cancelled
// ctx ends the wait between attempts with ctx.Err().
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Delay
	var err error

	for i := range attempts {
		if err = fn(); err == nil || !Transient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return err
}

// PersistenceError maps a failed write to the persistence codes. Endpoints
// that could not be reached give PERSISTENCE_NETWORK; any answer, including
// 404, gives PERSISTENCE_SERVER carrying the server's message.
func PersistenceError(err error, action string) error {
	if err == nil {
		return nil
	}
	var se *errors.ServerError
	switch {
	case stderrors.As(err, &se):
		return errors.Wrap(errors.ErrCodePersistenceServer, se, "%s rejected: %s", action, serverMessage(se))
	case stderrors.Is(err, ErrNotFound):
		return errors.Wrap(errors.ErrCodePersistenceServer, err, "%s: endpoint not found", action)
	default:
		return errors.Wrap(errors.ErrCodePersistenceNetwork, err, "%s", action)
	}
}

// serverMessage extracts "error" from a JSON error body, falling back to the
// raw text.
func serverMessage(se *errors.ServerError) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(se.Message), &body) == nil && body.Error != "" {
		return body.Error
	}
	if se.Message == "" {
		return se.Error()
	}
	return se.Message
}
