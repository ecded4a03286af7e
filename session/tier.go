package session

// Tier is one storage backend holding the session keys.
// Put and Delete must apply to all given keys as a unit: a concurrent Get
// observes either all of the old values or all of the new ones.
type Tier interface {
	// Get returns the stored values for keys. Missing keys are absent from the map.
	Get(keys ...string) (map[string]string, error)

	// Put stores all values together
	Put(values map[string]string) error

	// Delete removes the keys. Deleting missing keys is not an error.
	Delete(keys ...string) error
}
