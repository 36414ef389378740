// Package app wires configuration, storage, services, the Discord bot,
// and the HTTP validation API into a single runnable application.
//
// The lifecycle is: Load config, open both stores, construct the
// service layer, then run the bot and (if enabled) the API server
// concurrently until SIGINT or SIGTERM. Shutdown drains the HTTP
// server within the configured timeout, deregisters the bot session,
// and closes both stores.
package app
