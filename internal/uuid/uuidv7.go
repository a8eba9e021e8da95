// Package uuid generates UUIDv7 identifiers for immutable time-series rows.
// UUIDv7 is time-ordered and suitable for use as database primary keys.
package uuid

import googleuuid "github.com/google/uuid"

// New generates a new UUIDv7 based on the current timestamp, falling back
// to UUIDv4 if the random source is unavailable.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.New().String()
	}
	return id.String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
