// Package daemon coordinates the long-running phraseindex process.
//
// It wires the workflow manager, the admin API server and the optional
// RabbitMQ intake consumer into a single lifecycle, with a flock on the data
// directory so only one daemon polls a database at a time. Individual
// pipeline steps live in their own packages; the daemon owns startup and
// shutdown.
package daemon
