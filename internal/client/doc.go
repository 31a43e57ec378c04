// Package client is the REST client for the playground backend.
//
// # Overview
//
// Client wraps a resty client configured with the backend base URL and a
// request timeout. It covers every non-streaming endpoint the playground
// uses: status, the agent/team/workflow catalogs, sessions, workflow session
// state, session branching, and knowledge documents. Streaming runs go through
// internal/stream instead because they must not be subject to the timeout.
//
// # Errors
//
// Non-2xx responses become *StatusError. A 404 matches ErrNotFound:
//
//	if errors.Is(err, client.ErrNotFound) { ... }
//
// Session listings treat 404 as "storage disabled" and return an empty list.
//
// # History
//
// Messages converts a fetched session into conversation messages, handling
// both the agent/team run format (message/response pairs) and the workflow
// entry format (RunResponse/UserMessage records).
package client
