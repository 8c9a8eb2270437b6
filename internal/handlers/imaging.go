package handlers

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/technosupport/onvif-gateway/internal/hal"
	"github.com/technosupport/onvif-gateway/internal/onviferr"
)

// ImagingHandler implements the imaging service against a hal.Driver.
type ImagingHandler struct {
	Profiles *ProfileManager
	Driver   hal.Driver
}

func NewImagingHandler(profiles *ProfileManager, driver hal.Driver) *ImagingHandler {
	return &ImagingHandler{Profiles: profiles, Driver: driver}
}

func (h *ImagingHandler) Service() string { return "imaging" }

// SupportedActions lists the imaging operations this handler implements.
func (h *ImagingHandler) SupportedActions() []string {
	return []string{
		"GetImagingSettings",
		"SetImagingSettings",
		"GetOptions",
		"GetStatus",
		"GetMoveOptions",
		"GetServiceCapabilities",
		"GetPresets",
		"GetCurrentPreset",
	}
}

func (h *ImagingHandler) Handle(ctx context.Context, req Request) (string, error) {
	switch req.Operation {
	case "GetImagingSettings":
		return h.getImagingSettings(ctx, req.BodyXML)
	case "SetImagingSettings":
		return h.setImagingSettings(ctx, req.BodyXML)
	case "GetOptions", "GetStatus", "GetMoveOptions", "GetServiceCapabilities", "GetPresets", "GetCurrentPreset":
		return fmt.Sprintf(`<timg:%sResponse/>`, req.Operation), nil
	default:
		return "", onviferr.Newf(onviferr.ActionNotSupported, "imaging service does not implement operation %q", req.Operation)
	}
}

type videoSourceTokenBody struct {
	VideoSourceToken string `xml:"VideoSourceToken"`
}

func (h *ImagingHandler) getImagingSettings(ctx context.Context, bodyXML string) (string, error) {
	var req videoSourceTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.VideoSourceToken == "" {
		return "", onviferr.InvalidArg("InvalidVideoSourceTokenToken", "missing or malformed VideoSourceToken")
	}
	settings, err := h.Driver.GetImagingSettings(ctx, req.VideoSourceToken)
	if err != nil {
		return "", onviferr.Newf(onviferr.HardwareFailure, "imaging settings unavailable: %v", err)
	}
	return fmt.Sprintf(`<timg:GetImagingSettingsResponse><timg:ImagingSettings><tt:Brightness>%f</tt:Brightness><tt:Contrast>%f</tt:Contrast><tt:ColorSaturation>%f</tt:ColorSaturation><tt:Sharpness>%f</tt:Sharpness></timg:ImagingSettings></timg:GetImagingSettingsResponse>`,
		settings.Brightness, settings.Contrast, settings.Saturation, settings.Sharpness), nil
}

type setImagingSettingsBody struct {
	VideoSourceToken string `xml:"VideoSourceToken"`
	ImagingSettings  struct {
		Brightness      float64 `xml:"Brightness"`
		Contrast        float64 `xml:"Contrast"`
		ColorSaturation float64 `xml:"ColorSaturation"`
		Sharpness       float64 `xml:"Sharpness"`
	} `xml:"ImagingSettings"`
}

func (h *ImagingHandler) setImagingSettings(ctx context.Context, bodyXML string) (string, error) {
	var req setImagingSettingsBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.VideoSourceToken == "" {
		return "", onviferr.InvalidArg("InvalidVideoSourceTokenToken", "missing or malformed VideoSourceToken")
	}

	settings := hal.ImagingSettings{
		Brightness: req.ImagingSettings.Brightness,
		Contrast:   req.ImagingSettings.Contrast,
		Saturation: req.ImagingSettings.ColorSaturation,
		Sharpness:  req.ImagingSettings.Sharpness,
	}
	if err := h.Driver.SetImagingSettings(ctx, req.VideoSourceToken, settings); err != nil {
		return "", onviferr.Newf(onviferr.HardwareFailure, "set imaging settings failed: %v", err)
	}
	return `<timg:SetImagingSettingsResponse/>`, nil
}
