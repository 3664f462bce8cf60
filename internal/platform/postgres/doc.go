// Package postgres implements the store interfaces against PostgreSQL
// using database/sql with the pgx stdlib driver. Shared mutable resources
// (slot buckets, grant balances) are mutated exclusively through guarded
// single-statement updates so concurrent requests fail closed instead of
// over-committing.
package postgres
