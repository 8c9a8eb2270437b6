// Package hal is the hardware abstraction boundary between the ONVIF
// protocol engine and the camera's actual video pipeline and motor control.
// It is modeled as a plain Go interface: the engine never knows whether the
// concrete driver talks to a V4L2 device, an RTSP relay, or a simulator.
package hal

import "context"

// PTZVector is a single pan/tilt/zoom axis triple in the camera's
// normalized [-1.0, 1.0] space.
type PTZVector struct {
	Pan  float64
	Tilt float64
	Zoom float64
}

// ImagingSettings is the subset of imaging parameters the engine exposes
// over ONVIF's imaging service.
type ImagingSettings struct {
	Brightness float64
	Contrast   float64
	Saturation float64
	Sharpness  float64
}

// Driver is implemented by whatever talks to the actual camera hardware.
// Every method takes a context so a slow or wedged device doesn't block a
// dispatcher goroutine indefinitely.
type Driver interface {
	// StreamURI returns the RTSP (or other transport) URI for profileToken.
	StreamURI(ctx context.Context, profileToken string) (string, error)

	// SnapshotURI returns the HTTP URI serving a JPEG snapshot for profileToken.
	SnapshotURI(ctx context.Context, profileToken string) (string, error)

	// Snapshot fetches the raw bytes of a JPEG snapshot for profileToken,
	// plus its content type, for the HTTP Digest-guarded snapshot endpoint.
	Snapshot(ctx context.Context, profileToken string) (data []byte, contentType string, err error)

	// ContinuousMove starts a velocity-controlled PTZ move; it does not block
	// until the move completes.
	ContinuousMove(ctx context.Context, profileToken string, velocity PTZVector) error

	// Stop halts any in-progress PTZ move for profileToken.
	Stop(ctx context.Context, profileToken string) error

	// Position reports the PTZ device's current position.
	Position(ctx context.Context, profileToken string) (PTZVector, error)

	// GetImagingSettings returns the current imaging parameters for the
	// video source behind profileToken.
	GetImagingSettings(ctx context.Context, profileToken string) (ImagingSettings, error)

	// SetImagingSettings applies new imaging parameters.
	SetImagingSettings(ctx context.Context, profileToken string, settings ImagingSettings) error
}
