package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/technosupport/onvif-gateway/internal/onviferr"
)

// DeviceInfo is the static identity the device service reports.
type DeviceInfo struct {
	Manufacturer    string
	Model           string
	FirmwareVersion string
	SerialNumber    string
	HardwareID      string
}

// DeviceHandler implements the device management service.
type DeviceHandler struct {
	Info DeviceInfo
}

func NewDeviceHandler(info DeviceInfo) *DeviceHandler {
	return &DeviceHandler{Info: info}
}

func (h *DeviceHandler) Service() string { return "device" }

// SupportedActions lists the device operations this handler implements.
func (h *DeviceHandler) SupportedActions() []string {
	return []string{
		"GetDeviceInformation",
		"GetSystemDateAndTime",
		"GetCapabilities",
		"GetServices",
		"GetServiceCapabilities",
	}
}

func (h *DeviceHandler) Handle(ctx context.Context, req Request) (string, error) {
	switch req.Operation {
	case "GetDeviceInformation":
		return h.getDeviceInformation()
	case "GetSystemDateAndTime":
		return h.getSystemDateAndTime()
	case "GetCapabilities", "GetServices", "GetServiceCapabilities":
		return fmt.Sprintf(`<tds:%sResponse/>`, req.Operation), nil
	default:
		return "", onviferr.Newf(onviferr.ActionNotSupported, "device service does not implement operation %q", req.Operation)
	}
}

func (h *DeviceHandler) getDeviceInformation() (string, error) {
	return fmt.Sprintf(`<tds:GetDeviceInformationResponse>
  <tds:Manufacturer>%s</tds:Manufacturer>
  <tds:Model>%s</tds:Model>
  <tds:FirmwareVersion>%s</tds:FirmwareVersion>
  <tds:SerialNumber>%s</tds:SerialNumber>
  <tds:HardwareId>%s</tds:HardwareId>
</tds:GetDeviceInformationResponse>`,
		h.Info.Manufacturer, h.Info.Model, h.Info.FirmwareVersion, h.Info.SerialNumber, h.Info.HardwareID), nil
}

func (h *DeviceHandler) getSystemDateAndTime() (string, error) {
	now := time.Now().UTC()
	return fmt.Sprintf(`<tds:GetSystemDateAndTimeResponse>
  <tds:SystemDateAndTime>
    <tt:DateTimeType>NTP</tt:DateTimeType>
    <tt:DaylightSavings>false</tt:DaylightSavings>
    <tt:UTCDateTime>
      <tt:Time><tt:Hour>%d</tt:Hour><tt:Minute>%d</tt:Minute><tt:Second>%d</tt:Second></tt:Time>
      <tt:Date><tt:Year>%d</tt:Year><tt:Month>%d</tt:Month><tt:Day>%d</tt:Day></tt:Date>
    </tt:UTCDateTime>
  </tds:SystemDateAndTime>
</tds:GetSystemDateAndTimeResponse>`,
		now.Hour(), now.Minute(), now.Second(), now.Year(), int(now.Month()), now.Day()), nil
}
