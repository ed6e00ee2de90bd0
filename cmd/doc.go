// Package cmd defines and implements the CLI commands for the sitediscovery executable.
//
// Running the binary without a subcommand behaves like "discover": it scans the
// nginx and Apache configuration trees, filters the virtual hosts and prints a
// low-level discovery manifest on stdout. "serve" exposes the same manifest
// over HTTP together with health probes and Prometheus metrics.
//
// Every flag is bound into viper, so each one can also come from the YAML file
// given by --config or from a SITEDISCOVERY_* environment variable, e.g.
// SITEDISCOVERY_DISCOVERY_IGNORE_LIST="*.internal,staging.*".
package cmd
