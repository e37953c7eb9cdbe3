// Package main hosts the phraseindex CLI entrypoint and command graph.
//
// The Cobra command tree opens the SQLite store directly: serve runs the
// workflow manager with the admin API and optional intake consumer, while the
// remaining commands process single videos, inspect and maintain the chunk
// queue, and recover stuck runs. Configuration resolution and logger setup
// are centralised in commandContext so subcommands stay declarative.
package main
