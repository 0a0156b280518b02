// Package postgres implements the store using pgx/v5 with raw SQL.
// Features: single-statement compare-and-set for master state, row
// locking for batch request claims, embedded SQL migrations.
package postgres
