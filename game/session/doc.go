// Package session provides session management for the Mars rover server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Session lifecycle management
//   - JSON snapshots of every rover on disk
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// Each service.Session owns its own engine.GridSimulator together with the
// layout that was last placed on it, so sessions never share grid state.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference. Lookups are
// case-insensitive. Caller-supplied IDs are limited to letters, digits, '-'
// and '_' because they double as snapshot file names.
//
// Persistence:
//
// FilePersistence writes one JSON file per session containing the layout, the
// rover position and heading, the blocked cells and the pending laser target.
// Loading a snapshot builds a fresh simulator and restores that state, so a
// rover stopped by a boulder can still fire its laser after a restart. A run
// that was in flight when the snapshot was taken comes back as cancelled.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions", layouts)
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(persistence)
//	manager.LoadPersistedSessions()
//
//	sess, err := manager.Create("", "boulder_field", l)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Cleanup:
//
// CleanupExpiredSessions evicts idle sessions from memory but never one whose
// rover is still executing commands. Evicted sessions stay on disk and are
// loaded again on the next Get.
package session
