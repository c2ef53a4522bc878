// Package id generates prefixed unique identifiers for ephemeral records.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate creates a prefixed NanoID, e.g. "job-V1StGXR8_Z5jdHi6B-myT".
// Used for transcode jobs and scan runs; book ids are slugs, not NanoIDs.
//
// Returns an error if the system has insufficient entropy.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics when generation fails. Entropy
// exhaustion is not survivable for this process, so callers on startup and
// scan paths use this form.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
