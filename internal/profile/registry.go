package profile

import "time"

// Registry maps connection identities to their profiles.
//
// The registry is not safe for concurrent use on its own: it is owned
// by the match coordinator, which serializes all access behind its
// mutex alongside the tier queues and session table.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*Profile)}
}

// Put installs a fresh profile for the identity, replacing any prior one.
func (r *Registry) Put(identity, name string, tier Tier) *Profile {
	p := &Profile{
		Identity:     identity,
		Name:         name,
		Tier:         tier,
		RegisteredAt: time.Now(),
	}
	r.profiles[identity] = p
	return p
}

// Get returns the profile for the identity, or nil if not registered.
func (r *Registry) Get(identity string) *Profile {
	return r.profiles[identity]
}

// Remove deletes the identity's profile. No-op if absent.
func (r *Registry) Remove(identity string) {
	delete(r.profiles, identity)
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	return len(r.profiles)
}
