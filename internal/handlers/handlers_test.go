package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/onvif-gateway/internal/hal"
)

func TestDeviceHandlerGetDeviceInformation(t *testing.T) {
	h := NewDeviceHandler(DeviceInfo{Manufacturer: "Acme", Model: "X1", FirmwareVersion: "1.0", SerialNumber: "SN1", HardwareID: "HW1"})
	resp, err := h.Handle(context.Background(), Request{Operation: "GetDeviceInformation"})
	require.NoError(t, err)
	assert.Contains(t, resp, "Acme")
}

func TestDeviceHandlerRejectsUnknownOperation(t *testing.T) {
	h := NewDeviceHandler(DeviceInfo{})
	_, err := h.Handle(context.Background(), Request{Operation: "DoSomethingUnknown"})
	assert.Error(t, err)
}

func TestMediaHandlerGetProfilesAndStreamUri(t *testing.T) {
	profiles := NewProfileManager(4)
	driver := hal.NewNoopDriver("rtsp://cam/stream", "http://cam/snapshot")
	h := NewMediaHandler(profiles, driver)

	resp, err := h.Handle(context.Background(), Request{Operation: "GetProfiles"})
	require.NoError(t, err)
	assert.Contains(t, resp, "MainStream")

	token := profiles.List()[0].Token
	resp, err = h.Handle(context.Background(), Request{
		Operation: "GetStreamUri",
		BodyXML:   "<GetStreamUri><ProfileToken>" + token + "</ProfileToken></GetStreamUri>",
	})
	require.NoError(t, err)
	assert.Contains(t, resp, "rtsp://cam/stream/"+token)
}

func TestMediaHandlerCreateAndDeleteProfile(t *testing.T) {
	profiles := NewProfileManager(4)
	driver := hal.NewNoopDriver("rtsp://cam", "http://cam")
	h := NewMediaHandler(profiles, driver)

	resp, err := h.Handle(context.Background(), Request{
		Operation: "CreateProfile",
		BodyXML:   "<CreateProfile><Name>Custom</Name></CreateProfile>",
	})
	require.NoError(t, err)
	assert.Contains(t, resp, "Custom")

	token := profiles.List()[2].Token
	_, err = h.Handle(context.Background(), Request{
		Operation: "DeleteProfile",
		BodyXML:   "<DeleteProfile><ProfileToken>" + token + "</ProfileToken></DeleteProfile>",
	})
	require.NoError(t, err)
	assert.Len(t, profiles.List(), 2)
}

func TestPTZHandlerContinuousMoveAndStop(t *testing.T) {
	profiles := NewProfileManager(4)
	presets := NewPTZState(8)
	driver := hal.NewNoopDriver("rtsp://cam", "http://cam")
	h := NewPTZHandler(profiles, presets, driver)
	token := profiles.List()[0].Token

	_, err := h.Handle(context.Background(), Request{
		Operation: "ContinuousMove",
		BodyXML:   `<ContinuousMove><ProfileToken>` + token + `</ProfileToken><Velocity><PanTilt x="0.5" y="-0.2"/></Velocity></ContinuousMove>`,
	})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), Request{
		Operation: "GetStatus",
		BodyXML:   `<GetStatus><ProfileToken>` + token + `</ProfileToken></GetStatus>`,
	})
	require.NoError(t, err)
	assert.Contains(t, resp, `x="0.500000"`)

	_, err = h.Handle(context.Background(), Request{
		Operation: "Stop",
		BodyXML:   `<Stop><ProfileToken>` + token + `</ProfileToken></Stop>`,
	})
	require.NoError(t, err)
}

func TestImagingHandlerGetAndSetSettings(t *testing.T) {
	driver := hal.NewNoopDriver("rtsp://cam", "http://cam")
	h := NewImagingHandler(NewProfileManager(4), driver)

	_, err := h.Handle(context.Background(), Request{
		Operation: "SetImagingSettings",
		BodyXML:   `<SetImagingSettings><VideoSourceToken>VS_0</VideoSourceToken><ImagingSettings><Brightness>70</Brightness></ImagingSettings></SetImagingSettings>`,
	})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), Request{
		Operation: "GetImagingSettings",
		BodyXML:   `<GetImagingSettings><VideoSourceToken>VS_0</VideoSourceToken></GetImagingSettings>`,
	})
	require.NoError(t, err)
	assert.Contains(t, resp, "70.000000")
}
