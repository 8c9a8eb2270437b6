package handlers

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/technosupport/onvif-gateway/internal/hal"
	"github.com/technosupport/onvif-gateway/internal/onviferr"
)

// PTZHandler implements the PTZ service against a hal.Driver and the
// in-memory preset directory.
type PTZHandler struct {
	Profiles *ProfileManager
	Presets  *PTZState
	Driver   hal.Driver
}

func NewPTZHandler(profiles *ProfileManager, presets *PTZState, driver hal.Driver) *PTZHandler {
	return &PTZHandler{Profiles: profiles, Presets: presets, Driver: driver}
}

func (h *PTZHandler) Service() string { return "ptz" }

// SupportedActions lists the PTZ operations this handler implements.
func (h *PTZHandler) SupportedActions() []string {
	return []string{
		"ContinuousMove",
		"Stop",
		"GetStatus",
		"SetPreset",
		"GotoPreset",
		"RemovePreset",
		"GetPresets",
		"GetNodes",
		"GetNode",
		"GetConfigurations",
		"GetConfiguration",
		"GetConfigurationOptions",
		"GetServiceCapabilities",
		"GetCompatibleConfigurations",
	}
}

func (h *PTZHandler) Handle(ctx context.Context, req Request) (string, error) {
	switch req.Operation {
	case "ContinuousMove":
		return h.continuousMove(ctx, req.BodyXML)
	case "Stop":
		return h.stop(ctx, req.BodyXML)
	case "GetStatus":
		return h.getStatus(ctx, req.BodyXML)
	case "SetPreset":
		return h.setPreset(ctx, req.BodyXML)
	case "GotoPreset":
		return h.gotoPreset(ctx, req.BodyXML)
	case "RemovePreset":
		return h.removePreset(req.BodyXML)
	case "GetPresets":
		return h.getPresets(req.BodyXML)
	case "GetNodes", "GetNode", "GetConfigurations", "GetConfiguration", "GetConfigurationOptions",
		"GetServiceCapabilities", "GetCompatibleConfigurations":
		return fmt.Sprintf(`<tptz:%sResponse/>`, req.Operation), nil
	default:
		return "", onviferr.Newf(onviferr.ActionNotSupported, "ptz service does not implement operation %q", req.Operation)
	}
}

type continuousMoveBody struct {
	ProfileToken string `xml:"ProfileToken"`
	Velocity     struct {
		PanTilt struct {
			X float64 `xml:"x,attr"`
			Y float64 `xml:"y,attr"`
		} `xml:"PanTilt"`
		Zoom struct {
			X float64 `xml:"x,attr"`
		} `xml:"Zoom"`
	} `xml:"Velocity"`
}

func (h *PTZHandler) resolveProfile(token string) error {
	_, err := h.Profiles.Get(token)
	return err
}

func (h *PTZHandler) continuousMove(ctx context.Context, bodyXML string) (string, error) {
	var req continuousMoveBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" {
		return "", onviferr.InvalidArg("InvalidProfileTokenToken", "missing or malformed ProfileToken")
	}
	if err := h.resolveProfile(req.ProfileToken); err != nil {
		return "", err
	}

	velocity := hal.PTZVector{Pan: req.Velocity.PanTilt.X, Tilt: req.Velocity.PanTilt.Y, Zoom: req.Velocity.Zoom.X}
	if err := h.Driver.ContinuousMove(ctx, req.ProfileToken, velocity); err != nil {
		return "", onviferr.Newf(onviferr.HardwareFailure, "continuous move failed: %v", err)
	}
	return `<tptz:ContinuousMoveResponse/>`, nil
}

func (h *PTZHandler) stop(ctx context.Context, bodyXML string) (string, error) {
	var req profileTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" {
		return "", onviferr.InvalidArg("InvalidProfileTokenToken", "missing or malformed ProfileToken")
	}
	if err := h.resolveProfile(req.ProfileToken); err != nil {
		return "", err
	}
	if err := h.Driver.Stop(ctx, req.ProfileToken); err != nil {
		return "", onviferr.Newf(onviferr.HardwareFailure, "stop failed: %v", err)
	}
	return `<tptz:StopResponse/>`, nil
}

func (h *PTZHandler) getStatus(ctx context.Context, bodyXML string) (string, error) {
	var req profileTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" {
		return "", onviferr.InvalidArg("InvalidProfileTokenToken", "missing or malformed ProfileToken")
	}
	if err := h.resolveProfile(req.ProfileToken); err != nil {
		return "", err
	}
	pos, err := h.Driver.Position(ctx, req.ProfileToken)
	if err != nil {
		return "", onviferr.Newf(onviferr.HardwareFailure, "position read failed: %v", err)
	}
	return fmt.Sprintf(`<tptz:GetStatusResponse><tptz:PTZStatus><tt:Position><tt:PanTilt x="%f" y="%f"/><tt:Zoom x="%f"/></tt:Position><tt:MoveStatus>IDLE</tt:MoveStatus></tptz:PTZStatus></tptz:GetStatusResponse>`,
		pos.Pan, pos.Tilt, pos.Zoom), nil
}

func (h *PTZHandler) setPreset(ctx context.Context, bodyXML string) (string, error) {
	var req profileTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" {
		return "", onviferr.InvalidArg("InvalidProfileTokenToken", "missing or malformed ProfileToken")
	}
	if err := h.resolveProfile(req.ProfileToken); err != nil {
		return "", err
	}
	pos, err := h.Driver.Position(ctx, req.ProfileToken)
	if err != nil {
		return "", onviferr.Newf(onviferr.HardwareFailure, "position read failed: %v", err)
	}
	token, err := h.Presets.SetPreset(req.ProfileToken, pos)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<tptz:SetPresetResponse><tptz:PresetToken>%s</tptz:PresetToken></tptz:SetPresetResponse>`, token), nil
}

type presetTokenBody struct {
	ProfileToken string `xml:"ProfileToken"`
	PresetToken  string `xml:"PresetToken"`
}

func (h *PTZHandler) gotoPreset(ctx context.Context, bodyXML string) (string, error) {
	var req presetTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" || req.PresetToken == "" {
		return "", onviferr.InvalidArg("InvalidPresetTokenToken", "missing or malformed ProfileToken/PresetToken")
	}
	if err := h.resolveProfile(req.ProfileToken); err != nil {
		return "", err
	}
	pos, err := h.Presets.GotoPreset(req.ProfileToken, req.PresetToken)
	if err != nil {
		return "", err
	}
	if err := h.Driver.ContinuousMove(ctx, req.ProfileToken, pos); err != nil {
		return "", onviferr.Newf(onviferr.HardwareFailure, "goto preset failed: %v", err)
	}
	_ = h.Driver.Stop(ctx, req.ProfileToken)
	return `<tptz:GotoPresetResponse/>`, nil
}

func (h *PTZHandler) removePreset(bodyXML string) (string, error) {
	var req presetTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" || req.PresetToken == "" {
		return "", onviferr.InvalidArg("InvalidPresetTokenToken", "missing or malformed ProfileToken/PresetToken")
	}
	if err := h.resolveProfile(req.ProfileToken); err != nil {
		return "", err
	}
	if err := h.Presets.RemovePreset(req.ProfileToken, req.PresetToken); err != nil {
		return "", err
	}
	return `<tptz:RemovePresetResponse/>`, nil
}

func (h *PTZHandler) getPresets(bodyXML string) (string, error) {
	var req profileTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" {
		return "", onviferr.InvalidArg("InvalidProfileTokenToken", "missing or malformed ProfileToken")
	}
	if err := h.resolveProfile(req.ProfileToken); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<tptz:GetPresetsResponse>")
	for _, token := range h.Presets.ListPresets(req.ProfileToken) {
		fmt.Fprintf(&b, `<tptz:Preset token="%s"/>`, token)
	}
	b.WriteString("</tptz:GetPresetsResponse>")
	return b.String(), nil
}
