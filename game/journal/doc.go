// Package journal records every command run, its steps and laser shots.
//
// SQLiteJournal keeps the record in a single SQLite file (pure Go driver,
// WAL mode) so history survives restarts. Memory holds the same record in
// process for tests and for servers started without a journal path.
//
// Both implement service.Journal and answer paginated History queries.
package journal
