package hal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// NoopDriver is a Driver that keeps PTZ position and imaging settings in
// memory without touching any real hardware. It is the default driver for
// deployments that haven't wired a vendor SDK, and the driver tests run
// handlers against.
type NoopDriver struct {
	streamBase   string
	snapshotBase string

	mu       sync.Mutex
	position map[string]PTZVector
	imaging  map[string]ImagingSettings
}

// NewNoopDriver builds a Driver whose stream/snapshot URIs are derived from
// the given base URLs, e.g. "rtsp://camera.local/stream" and
// "http://camera.local/snapshot".
func NewNoopDriver(streamBase, snapshotBase string) *NoopDriver {
	return &NoopDriver{
		streamBase:   streamBase,
		snapshotBase: snapshotBase,
		position:     make(map[string]PTZVector),
		imaging:      make(map[string]ImagingSettings),
	}
}

func (d *NoopDriver) StreamURI(ctx context.Context, profileToken string) (string, error) {
	return fmt.Sprintf("%s/%s", d.streamBase, profileToken), nil
}

func (d *NoopDriver) SnapshotURI(ctx context.Context, profileToken string) (string, error) {
	return fmt.Sprintf("%s/%s.jpg", d.snapshotBase, profileToken), nil
}

// Snapshot fetches the JPEG bytes served at SnapshotURI. It has no camera of
// its own to render from, so it proxies whatever source is configured via
// ONVIF_SNAPSHOT_BASE, the same way a vendor driver would proxy its sensor.
func (d *NoopDriver) Snapshot(ctx context.Context, profileToken string) ([]byte, string, error) {
	uri, err := d.SnapshotURI(ctx, profileToken)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build snapshot request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("snapshot source returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read snapshot body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

func (d *NoopDriver) ContinuousMove(ctx context.Context, profileToken string, velocity PTZVector) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position[profileToken] = velocity
	return nil
}

func (d *NoopDriver) Stop(ctx context.Context, profileToken string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position[profileToken] = PTZVector{}
	return nil
}

func (d *NoopDriver) Position(ctx context.Context, profileToken string) (PTZVector, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position[profileToken], nil
}

func (d *NoopDriver) GetImagingSettings(ctx context.Context, profileToken string) (ImagingSettings, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	settings, ok := d.imaging[profileToken]
	if !ok {
		return ImagingSettings{Brightness: 50, Contrast: 50, Saturation: 50, Sharpness: 50}, nil
	}
	return settings, nil
}

func (d *NoopDriver) SetImagingSettings(ctx context.Context, profileToken string, settings ImagingSettings) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.imaging[profileToken] = settings
	return nil
}
