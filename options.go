package eglimage

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/eglimage/layout"
	"github.com/gogpu/eglimage/storage"
)

// DefaultMaxTextureSize is the default largest texture and renderbuffer
// dimension.
const DefaultMaxTextureSize = 2048

// Platform holds the hardware limits and addressing rules of the device.
type Platform struct {
	// MaxTextureSize bounds the width and height of attached images.
	// Defaults to DefaultMaxTextureSize if <= 0.
	MaxTextureSize int

	// Stride is the row alignment rule of linear surfaces.
	// Defaults to layout.DefaultStrideRule if zero.
	Stride layout.StrideRule

	// Cube is the face packing rule of cube maps.
	// Defaults to layout.DefaultCubeRule if zero.
	Cube layout.CubeRule

	// DisableTwiddling stores every texture in linear layout.
	DisableTwiddling bool
}

func (p Platform) withDefaults() Platform {
	if p.MaxTextureSize <= 0 {
		p.MaxTextureSize = DefaultMaxTextureSize
	}
	if p.Stride == (layout.StrideRule{}) || p.Stride.Validate() != nil {
		p.Stride = layout.DefaultStrideRule
	}
	if p.Cube == (layout.CubeRule{}) || p.Cube.Validate() != nil {
		p.Cube = layout.DefaultCubeRule
	}
	return p
}

// DeviceHandle provides the GPU device the session renders with.
// It is an alias for gpucontext.DeviceProvider.
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle with no device. Its surface format is
// undefined, so ImportSurface fails with it.
type NullDeviceHandle struct{}

// Device returns nil.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns TextureFormatUndefined.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Option configures a Session during creation.
//
// Example:
//
//	s := eglimage.NewSession(
//	    eglimage.WithPlatform(eglimage.Platform{MaxTextureSize: 4096}),
//	    eglimage.WithWorkers(4),
//	)
type Option func(*sessionOptions)

type sessionOptions struct {
	platform      Platform
	storageConfig storage.Config
	storage       Storage
	tracker       ResourceTracker
	registry      ImageRegistry
	workers       int
	device        DeviceHandle
}

func defaultOptions() sessionOptions {
	return sessionOptions{device: NullDeviceHandle{}}
}

// WithPlatform sets the device limits and addressing rules.
func WithPlatform(p Platform) Option {
	return func(o *sessionOptions) {
		o.platform = p
	}
}

// WithStorageConfig configures the session-owned storage manager.
// It is ignored when WithStorage is given.
func WithStorageConfig(c storage.Config) Option {
	return func(o *sessionOptions) {
		o.storageConfig = c
	}
}

// WithStorage supplies the memory allocator. The session does not close it.
func WithStorage(st Storage) Option {
	return func(o *sessionOptions) {
		o.storage = st
	}
}

// WithTracker supplies the resource liveness oracle. The session does not
// close it.
func WithTracker(t ResourceTracker) Option {
	return func(o *sessionOptions) {
		o.tracker = t
	}
}

// WithRegistry supplies the image registry, which may be shared between
// sessions.
func WithRegistry(r ImageRegistry) Option {
	return func(o *sessionOptions) {
		o.registry = r
	}
}

// WithWorkers sets the number of goroutines used for layout translation.
// Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *sessionOptions) {
		o.workers = n
	}
}

// WithDeviceHandle supplies the GPU device, whose surface format types
// buffers passed to ImportSurface.
func WithDeviceHandle(d DeviceHandle) Option {
	return func(o *sessionOptions) {
		if d != nil {
			o.device = d
		}
	}
}
