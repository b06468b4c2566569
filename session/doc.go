// Package session houses the in-memory implementation of core.SessionStore.
// The interface itself (and the Session struct) live in the core package so
// the runtime never depends on concrete storage. A durable SQLite backend is
// provided by package sqlstore; only the wiring layer decides which one to
// instantiate.
package session
