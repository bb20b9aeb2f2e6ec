// Package integration provides a harness that builds the auditor binary,
// launches it in server mode and drives it over its HTTP API.
//
// The constructs here are general enough to drive an auditor server
// instance from any program, not only from tests.
package integration
