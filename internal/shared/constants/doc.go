// Package constants centralizes defaults shared between the CLI and the REST
// service.
package constants
