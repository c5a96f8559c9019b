// Package password provides one-way password hashing and verification using
// Argon2id, a memory-hard algorithm whose cost is tunable and deliberately
// high (tens of milliseconds per call).
//
// Produced hashes use the PHC string format, embedding algorithm parameters
// and a per-call random salt, so verification is self-contained. Digest
// comparison is constant-time. A malformed stored hash surfaces as
// ErrInvalidHash, never as a false verification result.
//
// Because the algorithm is slow by design, every Hash and Verify call is
// dispatched through a bounded slot pool owned by the Hasher. Concurrent
// login attempts queue on the pool, honouring context cancellation while
// waiting, so password work cannot starve unrelated request handling.
package password
