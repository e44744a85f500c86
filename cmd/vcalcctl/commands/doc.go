// Package commands defines the vcalcctl CLI.
//
// Commands
//
//   - auth      Check credentials against a running server
//   - compute   Authenticate and send one batch of vectors
//   - digest    Print the MD5 digest used by the handshake
//   - useradd   Add or replace a user in the credentials file
//
// The secret is taken from --secret, then from VCALC_SECRET, and is
// prompted on the terminal otherwise.
package commands
