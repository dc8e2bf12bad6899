// Package api contains the authenticated request pipeline.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic request/response contract (see Request, Response,
//     Transport) and a concrete net/http implementation (HTTPTransport) with
//     a hard per-request timeout.
//  2. A Decorator that attaches the bearer access token and the active
//     tenant header to every outbound request.
//  3. A Coordinator that performs at most one token refresh at a time and
//     parks concurrent callers behind the in-flight cycle.
//  4. A Classifier mapping transport outcomes onto the uniform error
//     taxonomy in internal/common.
//  5. A Client tying the above together: decorate, send, transparently
//     refresh-and-replay on an authentication failure, classify.
//
// # Error Handling
//
// All failures surface as *common.APIError. Callers can match terminal auth
// failures with errors.Is(err, common.ErrAuthExpired).
//
// Concurrency & Contexts
//
// All types are safe for concurrent use. Every operation accepts a
// context.Context and honors cancellation.
package api
