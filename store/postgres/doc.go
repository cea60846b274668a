// Package postgres implements sphereauth.UserStore on PostgreSQL through a pgx
// connection pool. The schema ships as embedded migrations applied by Migrate.
//
// Reset code consumption is a single conditional UPDATE, so two concurrent
// confirmations of the same code cannot both succeed.
package postgres
