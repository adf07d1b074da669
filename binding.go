package eglimage

import (
	"fmt"

	"github.com/gogpu/eglimage/registry"
	"github.com/gogpu/eglimage/resource"
	"github.com/gogpu/eglimage/storage"
)

// Role is the part an object plays in image sharing.
type Role uint8

// Roles.
const (
	// RoleNone means the object owns its storage, if any.
	RoleNone Role = iota

	// RoleSource means the object's storage is aliased by an image.
	RoleSource

	// RoleTarget means the object's storage is an image.
	RoleTarget
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleSource:
		return "source"
	case RoleTarget:
		return "target"
	default:
		return fmt.Sprintf("Role(%d)", r)
	}
}

// binding is the role of an object together with the image it refers to.
// image is nil exactly when role is RoleNone.
type binding struct {
	role  Role
	image *registry.Image
}

// backing is the storage state shared by textures and renderbuffers.
type backing struct {
	res    resource.ID
	block  *storage.Block
	offset int
	bind   binding
}

// sibling reports whether the object already takes part in image sharing.
func (b *backing) sibling() bool {
	return b.bind.role != RoleNone
}

// retired says how a binding was retired.
type retired uint8

const (
	retiredNothing retired = iota
	retiredGhost
	retiredRelease
)

// retire tears down the current role and storage of b. Storage still read
// by submitted GPU work is ghosted and b moves to a fresh resource ID;
// idle storage is released. On error b is unchanged.
func (s *Session) retire(b *backing, label string) (retired, error) {
	if b.block == nil && b.bind.role == RoleNone {
		return retiredNothing, nil
	}

	if s.tracker.IsResourceNeeded(b.res) {
		g := resource.Ghost{
			Resource: b.res,
			Label:    label,
			Block:    b.block,
			Release:  s.releaser(*b),
		}
		if err := s.tracker.Ghost(g); err != nil {
			return retiredNothing, fmt.Errorf("%w: cannot ghost %s: %w", ErrInvalidOperation, label, err)
		}
		Logger().Debug("eglimage: binding ghosted", "object", label, "role", b.bind.role, "resource", b.res)
		s.stats.Ghosted++
		b.res = s.tracker.NewID()
		b.clear()
		return retiredGhost, nil
	}

	Logger().Debug("eglimage: binding released", "object", label, "role", b.bind.role)
	s.releaser(*b)()
	s.stats.Released++
	b.clear()
	return retiredRelease, nil
}

// releaser returns the function that gives up what b holds: the image
// reference of a source or target, or the storage block otherwise. A
// source's block belongs to its image from extraction on.
func (s *Session) releaser(b backing) func() {
	switch b.bind.role {
	case RoleSource:
		h := b.bind.image.Handle
		return func() { s.registry.ReleaseSource(h) }
	case RoleTarget:
		h := b.bind.image.Handle
		return func() { s.registry.Unbind(h) }
	}
	blk := b.block
	return func() { s.storage.Free(blk) }
}

// releaseNow drops what b holds without consulting the tracker.
func (s *Session) releaseNow(b *backing) {
	if b.block == nil && b.bind.role == RoleNone {
		return
	}
	s.releaser(*b)()
	b.clear()
}

func (b *backing) clear() {
	b.block = nil
	b.offset = 0
	b.bind = binding{}
}

// bytes returns the CPU view of the storage from the object's offset.
func (b *backing) bytes() []byte {
	if b.block == nil {
		return nil
	}
	mem := b.block.Bytes()
	if mem == nil || b.offset > len(mem) {
		return nil
	}
	return mem[b.offset:]
}
