// Package http contains the HTTP handlers for the licensing service:
// the public license verification endpoint consumed by the browser
// extension, the Stripe webhook endpoint that provisions licenses, and
// the health and metrics endpoints.
//
// Handlers shape responses with go-chi/render, report failures as
// RFC 7807 problem details, and open an OpenTelemetry span per request.
package http
