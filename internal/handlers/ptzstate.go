package handlers

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/technosupport/onvif-gateway/internal/hal"
	"github.com/technosupport/onvif-gateway/internal/onviferr"
)

const DefaultMaxPresetsPerProfile = 8

// PTZState tracks named presets per profile, on top of the live position
// reported by the hardware driver.
type PTZState struct {
	maxPresets int

	mu      sync.Mutex
	presets map[string]map[string]hal.PTZVector // profileToken -> presetToken -> position
	counter atomic.Uint32
}

// NewPTZState builds preset storage capped at maxPresets per profile.
func NewPTZState(maxPresets int) *PTZState {
	if maxPresets <= 0 {
		maxPresets = DefaultMaxPresetsPerProfile
	}
	return &PTZState{maxPresets: maxPresets, presets: make(map[string]map[string]hal.PTZVector)}
}

// SetPreset stores position as a new preset for profileToken, returning its
// token. Rejects once the profile already holds maxPresets presets.
func (s *PTZState) SetPreset(profileToken string, position hal.PTZVector) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProfile, ok := s.presets[profileToken]
	if !ok {
		byProfile = make(map[string]hal.PTZVector)
		s.presets[profileToken] = byProfile
	}
	if len(byProfile) >= s.maxPresets {
		return "", onviferr.Newf(onviferr.ConfigurationConflict, "maximum number of presets (%d) reached for profile %q", s.maxPresets, profileToken)
	}

	n := s.counter.Add(1)
	token := fmt.Sprintf("Preset_%d", n)
	byProfile[token] = position
	return token, nil
}

// GotoPreset returns the stored position for a preset token.
func (s *PTZState) GotoPreset(profileToken, presetToken string) (hal.PTZVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProfile, ok := s.presets[profileToken]
	if !ok {
		return hal.PTZVector{}, onviferr.Newf(onviferr.NotFound, "no presets for profile %q", profileToken)
	}
	pos, ok := byProfile[presetToken]
	if !ok {
		return hal.PTZVector{}, onviferr.Newf(onviferr.NotFound, "no preset %q for profile %q", presetToken, profileToken)
	}
	return pos, nil
}

// RemovePreset deletes a stored preset.
func (s *PTZState) RemovePreset(profileToken, presetToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProfile, ok := s.presets[profileToken]
	if !ok {
		return onviferr.Newf(onviferr.NotFound, "no presets for profile %q", profileToken)
	}
	if _, ok := byProfile[presetToken]; !ok {
		return onviferr.Newf(onviferr.NotFound, "no preset %q for profile %q", presetToken, profileToken)
	}
	delete(byProfile, presetToken)
	return nil
}

// ListPresets returns preset tokens for profileToken, sorted for stable
// GetPresets responses.
func (s *PTZState) ListPresets(profileToken string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProfile := s.presets[profileToken]
	tokens := make([]string, 0, len(byProfile))
	for t := range byProfile {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}
