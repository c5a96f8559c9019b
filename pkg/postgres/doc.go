// Package postgres provides the PostgreSQL persistence layer: connection
// pooling with retry, embedded goose migrations, and the Storage adapter
// that backs the auth and twofa services.
//
// # Architecture
//
// Connect builds a pgxpool with linear-backoff retries and a verification
// ping. Migrate applies the SQL files embedded under migrations/ through
// goose, bridging the pgx pool to database/sql. Storage translates between
// rows and the domain types, mapping driver errors to the domain sentinels
// (pgx.ErrNoRows to not-found errors, SQLSTATE 23505 to conflict errors).
//
// Invariants the schema itself enforces:
//   - one enrollment per user (primary key on user_id)
//   - one share per (resource, grantee) pair (composite primary key)
//   - unique usernames and case-insensitive unique emails
//
// The last-administrator invariant is enforced inside single guarded UPDATE
// statements in SetAdmin and SetActive, so it holds under concurrent writers
// without table locks.
//
// # Usage
//
//	cfg, err := config.Load[postgres.Config]()
//	pool, err := postgres.Connect(ctx, cfg)
//	if err := postgres.Migrate(ctx, pool, cfg, log); err != nil { ... }
//	store := postgres.NewStorage(pool)
package postgres
