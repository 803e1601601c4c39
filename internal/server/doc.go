// Package server manages HTTP listener lifecycle: non-blocking start on a
// bound listener, graceful shutdown with a deadline, and asynchronous error
// propagation through Errors(). WaitForShutdown ties the lifecycle to
// SIGINT/SIGTERM for binaries that run a Manager as their foreground loop.
package server
