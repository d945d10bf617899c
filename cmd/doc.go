// Package cmd implements the command-line interface of dRender. It provides a
// hierarchical command structure for running the render server and inspecting
// a running server as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the render server
//   - probe: Connects to a server, prints its capabilities and measures its performance
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See drender -help for a list of all commands.
package cmd
