// README: Common value objects shared across modules.
package types

// ID is an opaque entity identifier (UUID string in persistence).
type ID string
