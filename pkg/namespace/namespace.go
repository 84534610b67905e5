// Package namespace generates and validates the object keys that address
// individual storage engines, mirroring the two ways objects are addressed:
// a random unique ID per instance, or a deterministic ID derived from a
// caller-supplied name so the same name always maps to the same object.
package namespace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Namespace scopes object IDs to a single class of objects, so two
// different namespaces can mint identically-named objects without
// colliding.
type Namespace struct {
	name string
}

// New returns a Namespace identified by name.
func New(name string) Namespace {
	return Namespace{name: name}
}

// NewUniqueID mints a random object key within the namespace, used when
// the caller has no natural name to address the object by.
func (n Namespace) NewUniqueID() string {
	return fmt.Sprintf("%s:%s", n.name, uuid.New().String())
}

// IDFromName derives a deterministic object key from name: the same
// namespace and name always produce the same key, letting callers address
// an object without persisting the ID themselves.
func (n Namespace) IDFromName(name string) string {
	sum := sha256.Sum256([]byte(n.name + "/" + name))
	return fmt.Sprintf("%s:%s", n.name, hex.EncodeToString(sum[:16]))
}

// IDFromString validates that id was produced by this namespace (it
// carries the namespace's prefix), returning it unchanged if so.
func (n Namespace) IDFromString(id string) (string, error) {
	prefix := n.name + ":"
	if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
		return "", fmt.Errorf("namespace %q: id %q does not belong to this namespace", n.name, id)
	}
	return id, nil
}
