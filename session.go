package eglimage

import (
	"sync"

	"github.com/gogpu/eglimage/layout"
	"github.com/gogpu/eglimage/registry"
	"github.com/gogpu/eglimage/resource"
	"github.com/gogpu/eglimage/storage"
)

// Storage allocates GPU-visible memory. *storage.Manager implements it.
type Storage interface {
	Allocate(size int, label string) (*storage.Block, error)
	Free(b *storage.Block)
}

// ResourceTracker reports whether submitted GPU work still reads a
// resource and keeps retired resources alive until it does not.
// *resource.Tracker implements it.
type ResourceTracker interface {
	NewID() resource.ID
	IsResourceNeeded(id resource.ID) bool
	Ghost(g resource.Ghost) error
}

// ImageRegistry is the reference-counted image table.
// *registry.Registry implements it.
type ImageRegistry interface {
	Create(populate func(img *registry.Image) error) (registry.Handle, error)
	Import(desc registry.ImportDesc) (registry.Handle, error)
	Lookup(h registry.Handle) (*registry.Image, bool)
	Bind(h registry.Handle) error
	Unbind(h registry.Handle)
	ReleaseSource(h registry.Handle)
	Destroy(h registry.Handle) error
}

// Stats contains session counters.
type Stats struct {
	// Textures and Renderbuffers count live objects.
	Textures      int
	Renderbuffers int

	// TextureTargetsBound and RenderbufferTargetsBound count objects whose
	// storage is currently an image.
	TextureTargetsBound      int
	RenderbufferTargetsBound int

	// Ghosted and Released count retirements by outcome.
	Ghosted  uint64
	Released uint64

	// Materialized counts images copied into a texture's own storage on
	// detach.
	Materialized uint64
}

// Session is the binding state of one graphics context.
//
// Session is safe for concurrent use; all methods serialize on one lock.
type Session struct {
	mu sync.Mutex

	platform   Platform
	storage    Storage
	tracker    ResourceTracker
	registry   ImageRegistry
	device     DeviceHandle
	translator *layout.Translator

	// Collaborators created by NewSession and closed by Close.
	ownedStorage *storage.Manager
	ownedTracker *resource.Tracker

	textures         map[uint32]*texture
	renderbuffers    map[uint32]*renderbuffer
	nextTexture      uint32
	nextRenderbuffer uint32

	stats  Stats
	closed bool
}

// NewSession creates a session. Collaborators not supplied through options
// are created with default configuration and owned by the session.
func NewSession(opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		platform:      o.platform.withDefaults(),
		storage:       o.storage,
		tracker:       o.tracker,
		registry:      o.registry,
		device:        o.device,
		translator:    layout.NewTranslator(o.workers),
		textures:      make(map[uint32]*texture),
		renderbuffers: make(map[uint32]*renderbuffer),
	}
	if s.storage == nil {
		s.ownedStorage = storage.NewManager(o.storageConfig)
		s.storage = s.ownedStorage
	}
	if s.tracker == nil {
		s.ownedTracker = resource.NewTracker(resource.Config{})
		s.tracker = s.ownedTracker
	}
	if s.registry == nil {
		s.registry = registry.New(s.storage)
	}

	Logger().Info("eglimage: session created",
		"maxTextureSize", s.platform.MaxTextureSize,
		"workers", s.translator.Workers(),
		"twiddling", !s.platform.DisableTwiddling)
	return s
}

// Platform returns the effective device limits.
func (s *Session) Platform() Platform {
	return s.platform
}

// Registry returns the image registry the session binds against.
func (s *Session) Registry() ImageRegistry {
	return s.registry
}

// Tracker returns the resource tracker the session consults.
func (s *Session) Tracker() ResourceTracker {
	return s.tracker
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Textures = len(s.textures)
	st.Renderbuffers = len(s.renderbuffers)
	return st
}

// Close drops every object's role and storage, then shuts down the
// collaborators the session owns. Close is safe to call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	// GPU work is over once the context goes away.
	if s.ownedTracker != nil {
		s.ownedTracker.Close()
	}
	for _, t := range s.textures {
		s.releaseNow(&t.backing)
	}
	for _, rb := range s.renderbuffers {
		s.releaseNow(&rb.backing)
	}
	clear(s.textures)
	clear(s.renderbuffers)
	s.stats.TextureTargetsBound = 0
	s.stats.RenderbufferTargetsBound = 0

	s.translator.Close()
	if s.ownedStorage != nil {
		s.ownedStorage.Close()
	}

	Logger().Info("eglimage: session closed",
		"ghosted", s.stats.Ghosted,
		"released", s.stats.Released)
}
