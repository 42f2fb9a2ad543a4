// Package stores keeps the build history in SQLite: one row per run, the
// actions each run executed, and the errors it reported. The schema is
// managed by golang-migrate from embedded migrations.
package stores
