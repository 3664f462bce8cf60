// Package store defines the persistence interfaces of the booking
// workflow, the sentinel errors they return, and transaction helpers.
// Implementations live under internal/platform.
package store
