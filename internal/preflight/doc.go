// Package preflight provides readiness checks for the directories and
// external services phraseindex depends on.
//
// serve runs RunAll at startup and logs failures as warnings; the CLI
// "config validate --preflight" prints the same results as a table.
// Each service check is gated by its config section, so a file lock backend
// skips Redis and a disabled intake skips RabbitMQ.
package preflight
