// Package http implements the validation API: a thin layer between
// HTTP transport and the license services. Handlers parse requests,
// delegate every verdict to the canonical validation logic, and render
// the wire shapes third-party integrators depend on. No business
// logic lives here.
package http
