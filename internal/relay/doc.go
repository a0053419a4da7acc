// Package relay serves a cloud.Backend over HTTP so devices without direct
// access to the backing store can sync through it.
//
// Routes:
//
//	GET  /healthz
//	GET  /metrics                            Prometheus exposition
//	GET  /v1/accounts/{account}/status       404 when the account does not exist
//	PUT  /v1/accounts/{account}/status       body: {"status": "available"}
//	POST /v1/accounts/{account}/changes      body: {"changes": [...]}
//	GET  /v1/accounts/{account}/snapshot
//
// cloud.HTTPBackend is the matching client. Backend failures are reported
// as 503 so clients treat them as ErrServiceUnavailable.
package relay
