package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/onvif-gateway/internal/hal"
	"github.com/technosupport/onvif-gateway/internal/onviferr"
)

func TestPTZStateSetAndGotoPreset(t *testing.T) {
	s := NewPTZState(8)
	token, err := s.SetPreset("Profile_1", hal.PTZVector{Pan: 0.5, Tilt: -0.3, Zoom: 0.1})
	require.NoError(t, err)

	pos, err := s.GotoPreset("Profile_1", token)
	require.NoError(t, err)
	assert.Equal(t, 0.5, pos.Pan)
}

func TestPTZStateEnforcesCapPerProfile(t *testing.T) {
	s := NewPTZState(2)
	_, err := s.SetPreset("Profile_1", hal.PTZVector{})
	require.NoError(t, err)
	_, err = s.SetPreset("Profile_1", hal.PTZVector{})
	require.NoError(t, err)

	_, err = s.SetPreset("Profile_1", hal.PTZVector{})
	require.Error(t, err)
	oerr, ok := err.(*onviferr.Error)
	require.True(t, ok)
	assert.Equal(t, onviferr.ConfigurationConflict, oerr.Kind)
}

func TestPTZStateCapIsPerProfile(t *testing.T) {
	s := NewPTZState(1)
	_, err := s.SetPreset("Profile_1", hal.PTZVector{})
	require.NoError(t, err)
	_, err = s.SetPreset("Profile_2", hal.PTZVector{})
	require.NoError(t, err)
}

func TestPTZStateRemovePreset(t *testing.T) {
	s := NewPTZState(8)
	token, _ := s.SetPreset("Profile_1", hal.PTZVector{})
	require.NoError(t, s.RemovePreset("Profile_1", token))

	_, err := s.GotoPreset("Profile_1", token)
	assert.Error(t, err)
}

func TestPTZStateGotoUnknownPreset(t *testing.T) {
	s := NewPTZState(8)
	_, err := s.GotoPreset("Profile_1", "nope")
	require.Error(t, err)
	oerr, ok := err.(*onviferr.Error)
	require.True(t, ok)
	assert.Equal(t, onviferr.NotFound, oerr.Kind)
}
