// Package httputil provides the HTTP plumbing shared by base-graph sources and
// the HTTP override backend.
//
// # Client
//
// [Client] performs GET and POST requests with default headers, classifies
// failures and optionally caches GET bodies through a [cache.Cache]:
//
//   - transport failures wrap [ErrNetwork]
//   - 404 responses wrap [ErrNotFound]
//   - other non-2xx responses become [errors.ServerError]
//
// # Retry
//
// A [Policy] re-runs an operation with exponential backoff while it fails
// transiently ([Transient]: transport failures and 5xx answers). Cached GETs
// use the client's policy; writes retry explicitly and map what is left to
// the persistence codes:
//
//	err := httputil.DefaultPolicy.Do(ctx, func() error {
//	    _, err := client.PostJSON(ctx, url, body)
//	    return err
//	})
//	return httputil.PersistenceError(err, "save overrides")
//
// Defaults: 3 attempts, 1 second initial delay, 10 second request timeout.
package httputil
