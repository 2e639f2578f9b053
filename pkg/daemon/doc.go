// Package daemon serves the administrative API of a fail point catalog over
// HTTP. The failpoint client talks to the daemon to configure fail points,
// inspect them, evaluate them on behalf of remote participants and drive
// rendezvous through signals. Currently all commands but `daemon` are
// client-side commands.
package daemon
