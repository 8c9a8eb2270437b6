package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/onvif-gateway/internal/onviferr"
)

func TestNewProfileManagerSeedsFixedProfiles(t *testing.T) {
	pm := NewProfileManager(4)
	list := pm.List()
	require.Len(t, list, 2)
	assert.True(t, list[0].Fixed)
	assert.True(t, list[1].Fixed)
}

func TestProfileManagerCreateAndDelete(t *testing.T) {
	pm := NewProfileManager(4)
	p, err := pm.Create("Custom")
	require.NoError(t, err)
	assert.False(t, p.Fixed)

	require.NoError(t, pm.Delete(p.Token))
	_, err = pm.Get(p.Token)
	assert.Error(t, err)
}

func TestProfileManagerRejectsDeletingFixedProfile(t *testing.T) {
	pm := NewProfileManager(4)
	fixed := pm.List()[0]

	err := pm.Delete(fixed.Token)
	require.Error(t, err)
	oerr, ok := err.(*onviferr.Error)
	require.True(t, ok)
	assert.Equal(t, onviferr.InvalidArgVal, oerr.Kind)
	assert.Contains(t, oerr.SOAPFault(), "DeletionOfFixedProfile")
}

func TestProfileManagerEnforcesCap(t *testing.T) {
	pm := NewProfileManager(2) // 2 fixed already fills the cap
	_, err := pm.Create("Overflow")
	require.Error(t, err)
	oerr, ok := err.(*onviferr.Error)
	require.True(t, ok)
	assert.Equal(t, onviferr.ConfigurationConflict, oerr.Kind)
}
