// Package services holds the business logic between the command and
// HTTP surfaces and the stores. Each service owns one domain area:
// licenses (issue, redeem, revoke, validate), accounts (registration
// and download gating), and operator statistics. Services take both
// surfaces' inputs already parsed and return domain results or typed
// errors; rendering belongs to the callers.
package services
