// Package server implements the HTTP surface of the Blind Book Reader
// backend. It wires the routes to the catalog, artifact and explanation
// dependencies and provides lifecycle helpers used by tests and the
// production binary.
package server
