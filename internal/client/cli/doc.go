// Package cli provides the interactive DuoMatch command-line client.
//
// It wires configuration, the local session database, the backend client,
// the credential store and the session bootstrapper. The bootstrapper state
// is routed to a screen and printed after every change; the REPL drives
// sign-in, sign-out and partner linking.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
