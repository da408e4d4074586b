// Package store persists the school's records: invoices and payments,
// programmes and courses, attendance registers, student timetables, and
// the audit log of mutating capability calls.
//
// SQLiteStore is the only implementation; it runs SQLite in WAL mode via
// the pure-Go modernc.org/sqlite driver and creates its schema on open.
// Timestamps are stored as RFC 3339 strings in UTC, calendar days as
// "2006-01-02".
package store
