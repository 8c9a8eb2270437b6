package handlers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/technosupport/onvif-gateway/internal/onviferr"
)

const (
	DefaultMaxProfiles = 32
	ProfileTokenPrefix = "Profile_"
)

// Profile is a minimal ONVIF media profile: enough identity to drive
// GetProfiles/GetStreamUri/GetSnapshotUri and the PTZ operations that take
// a ProfileToken.
type Profile struct {
	Token string
	Name  string
	Fixed bool
}

// ProfileManager owns the profile directory: two fixed profiles created at
// startup (MainStream, SubStream) plus operator-created profiles up to a
// configurable cap. Fixed profiles can never be deleted.
type ProfileManager struct {
	maxProfiles int

	mu       sync.RWMutex
	profiles map[string]*Profile
	order    []string
}

// NewProfileManager builds a manager with the two fixed profiles already
// present, as every ONVIF device ships with at least a main and a sub
// stream profile.
func NewProfileManager(maxProfiles int) *ProfileManager {
	if maxProfiles <= 0 {
		maxProfiles = DefaultMaxProfiles
	}
	pm := &ProfileManager{
		maxProfiles: maxProfiles,
		profiles:    make(map[string]*Profile),
	}
	pm.addFixed(ProfileTokenPrefix+"MainStream", "MainStream")
	pm.addFixed(ProfileTokenPrefix+"SubStream", "SubStream")
	return pm
}

func (pm *ProfileManager) addFixed(token, name string) {
	pm.profiles[token] = &Profile{Token: token, Name: name, Fixed: true}
	pm.order = append(pm.order, token)
}

// List returns all profiles in creation order.
func (pm *ProfileManager) List() []*Profile {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	out := make([]*Profile, 0, len(pm.order))
	for _, token := range pm.order {
		out = append(out, pm.profiles[token])
	}
	return out
}

// Get returns the profile for token, or an onviferr NotFound error.
func (pm *ProfileManager) Get(token string) (*Profile, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.profiles[token]
	if !ok {
		return nil, onviferr.Newf(onviferr.NotFound, "no profile with token %q", token)
	}
	return p, nil
}

// Create adds a new non-fixed profile named name, rejecting the request
// once the profile count has reached the configured cap. The token is an
// opaque google/uuid value, per §3's "profiles hold opaque tokens, not
// pointers" — it carries no creation-order information an NVR could infer
// anything from.
func (pm *ProfileManager) Create(name string) (*Profile, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.profiles) >= pm.maxProfiles {
		return nil, onviferr.Newf(onviferr.ConfigurationConflict, "maximum number of profiles (%d) reached", pm.maxProfiles)
	}

	token := fmt.Sprintf("%s%s", ProfileTokenPrefix, uuid.NewString())
	p := &Profile{Token: token, Name: name, Fixed: false}
	pm.profiles[token] = p
	pm.order = append(pm.order, token)
	return p, nil
}

// Delete removes a non-fixed profile. Deleting a fixed profile is rejected
// with the ONVIF-specific ter:DeletionOfFixedProfile subcode.
func (pm *ProfileManager) Delete(token string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p, ok := pm.profiles[token]
	if !ok {
		return onviferr.Newf(onviferr.NotFound, "no profile with token %q", token)
	}
	if p.Fixed {
		return onviferr.InvalidArg("DeletionOfFixedProfile", "cannot delete a fixed profile")
	}

	delete(pm.profiles, token)
	for i, t := range pm.order {
		if t == token {
			pm.order = append(pm.order[:i], pm.order[i+1:]...)
			break
		}
	}
	return nil
}

// Tokens returns every profile token, sorted, for diagnostics.
func (pm *ProfileManager) Tokens() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	tokens := make([]string, 0, len(pm.profiles))
	for t := range pm.profiles {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}
