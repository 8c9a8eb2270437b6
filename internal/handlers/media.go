package handlers

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/technosupport/onvif-gateway/internal/hal"
	"github.com/technosupport/onvif-gateway/internal/onviferr"
)

// MediaHandler implements the media service: profile listing/management
// plus stream and snapshot URI resolution.
type MediaHandler struct {
	Profiles *ProfileManager
	Driver   hal.Driver
}

func NewMediaHandler(profiles *ProfileManager, driver hal.Driver) *MediaHandler {
	return &MediaHandler{Profiles: profiles, Driver: driver}
}

func (h *MediaHandler) Service() string { return "media" }

// SupportedActions lists the media operations this handler implements.
func (h *MediaHandler) SupportedActions() []string {
	return []string{
		"GetProfiles",
		"GetProfile",
		"CreateProfile",
		"DeleteProfile",
		"GetStreamUri",
		"GetSnapshotUri",
		"GetVideoSources",
		"GetAudioSources",
		"GetVideoSourceConfigurations",
		"GetAudioSourceConfigurations",
		"GetVideoEncoderConfigurations",
		"GetAudioEncoderConfigurations",
	}
}

func (h *MediaHandler) Handle(ctx context.Context, req Request) (string, error) {
	switch req.Operation {
	case "GetProfiles":
		return h.getProfiles()
	case "GetProfile":
		return h.getProfile(req.BodyXML)
	case "CreateProfile":
		return h.createProfile(req.BodyXML)
	case "DeleteProfile":
		return h.deleteProfile(req.BodyXML)
	case "GetStreamUri":
		return h.getStreamURI(ctx, req.BodyXML)
	case "GetSnapshotUri":
		return h.getSnapshotURI(ctx, req.BodyXML)
	case "GetVideoSources", "GetAudioSources", "GetVideoSourceConfigurations", "GetAudioSourceConfigurations",
		"GetVideoEncoderConfigurations", "GetAudioEncoderConfigurations":
		return fmt.Sprintf(`<trt:%sResponse/>`, req.Operation), nil
	default:
		return "", onviferr.Newf(onviferr.ActionNotSupported, "media service does not implement operation %q", req.Operation)
	}
}

type profileTokenBody struct {
	ProfileToken string `xml:"ProfileToken"`
}

type createProfileBody struct {
	Name string `xml:"Name"`
}

func (h *MediaHandler) getProfiles() (string, error) {
	var b strings.Builder
	b.WriteString("<trt:GetProfilesResponse>")
	for _, p := range h.Profiles.List() {
		fmt.Fprintf(&b, `<trt:Profiles token="%s" fixed="%t"><tt:Name>%s</tt:Name></trt:Profiles>`, p.Token, p.Fixed, p.Name)
	}
	b.WriteString("</trt:GetProfilesResponse>")
	return b.String(), nil
}

func (h *MediaHandler) getProfile(bodyXML string) (string, error) {
	var req profileTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" {
		return "", onviferr.InvalidArg("InvalidProfileTokenToken", "missing or malformed ProfileToken")
	}
	p, err := h.Profiles.Get(req.ProfileToken)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<trt:GetProfileResponse><trt:Profile token="%s" fixed="%t"><tt:Name>%s</tt:Name></trt:Profile></trt:GetProfileResponse>`,
		p.Token, p.Fixed, p.Name), nil
}

func (h *MediaHandler) createProfile(bodyXML string) (string, error) {
	var req createProfileBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.Name == "" {
		return "", onviferr.InvalidArg("InvalidProfileName", "missing or malformed profile Name")
	}
	p, err := h.Profiles.Create(req.Name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<trt:CreateProfileResponse><trt:Profile token="%s" fixed="false"><tt:Name>%s</tt:Name></trt:Profile></trt:CreateProfileResponse>`,
		p.Token, p.Name), nil
}

func (h *MediaHandler) deleteProfile(bodyXML string) (string, error) {
	var req profileTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" {
		return "", onviferr.InvalidArg("InvalidProfileTokenToken", "missing or malformed ProfileToken")
	}
	if err := h.Profiles.Delete(req.ProfileToken); err != nil {
		return "", err
	}
	return `<trt:DeleteProfileResponse/>`, nil
}

func (h *MediaHandler) getStreamURI(ctx context.Context, bodyXML string) (string, error) {
	var req profileTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" {
		return "", onviferr.InvalidArg("InvalidProfileTokenToken", "missing or malformed ProfileToken")
	}
	if _, err := h.Profiles.Get(req.ProfileToken); err != nil {
		return "", err
	}
	uri, err := h.Driver.StreamURI(ctx, req.ProfileToken)
	if err != nil {
		return "", onviferr.Newf(onviferr.HardwareFailure, "stream URI unavailable: %v", err)
	}
	return fmt.Sprintf(`<trt:GetStreamUriResponse><trt:MediaUri><tt:Uri>%s</tt:Uri></trt:MediaUri></trt:GetStreamUriResponse>`, uri), nil
}

func (h *MediaHandler) getSnapshotURI(ctx context.Context, bodyXML string) (string, error) {
	var req profileTokenBody
	if err := xml.Unmarshal([]byte(bodyXML), &req); err != nil || req.ProfileToken == "" {
		return "", onviferr.InvalidArg("InvalidProfileTokenToken", "missing or malformed ProfileToken")
	}
	if _, err := h.Profiles.Get(req.ProfileToken); err != nil {
		return "", err
	}
	uri, err := h.Driver.SnapshotURI(ctx, req.ProfileToken)
	if err != nil {
		return "", onviferr.Newf(onviferr.HardwareFailure, "snapshot URI unavailable: %v", err)
	}
	return fmt.Sprintf(`<trt:GetSnapshotUriResponse><trt:MediaUri><tt:Uri>%s</tt:Uri></trt:MediaUri></trt:GetSnapshotUriResponse>`, uri), nil
}
