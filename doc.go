// Package eglimage shares pixel buffers between textures, renderbuffers and
// producers outside the GPU pipeline.
//
// # Overview
//
// A Session owns the texture and renderbuffer objects of one graphics
// context. Any of them can be exposed as a shared image (a source), and any
// image can be attached to another texture or renderbuffer (a target). The
// target then samples or renders straight from the source's memory.
//
//	s := eglimage.NewSession()
//	defer s.Close()
//
//	src, _ := s.CreateTexture(eglimage.TextureDesc{
//	    Kind: eglimage.Texture2D, Format: format.TexABGR8888, Width: 256, Height: 256,
//	})
//	_ = s.TexImage(src, 0, 0, pixels)
//
//	img, _ := s.CreateImage(eglimage.SourceTexture2D, src, 0)
//
//	dst, _ := s.CreateTexture(eglimage.TextureDesc{Kind: eglimage.Texture2D})
//	_ = s.ImageTargetTexture(eglimage.TargetTexture2D, dst, img)
//
// Buffers from cameras, video decoders or the window system enter through
// ImportBuffer and ImportSurface.
//
// # Roles
//
// Every texture and renderbuffer holds at most one role: none (it owns its
// storage), source (its storage is aliased by an image) or target (its
// storage is an image). Changing role retires the old one. Storage still
// read by submitted GPU work is ghosted: the old memory stays valid under a
// resource.Ghost until the work completes, while the object continues
// under a fresh resource ID. Idle storage is released at once.
//
// # Errors
//
// Every failure wraps one of the Err* sentinels; GLError and EGLError map
// them to the enum values the API entry points report. A failed role change
// leaves the object's role as it was.
//
// # Concurrency
//
// Session methods serialize on one lock, so a role change is never
// observed half done. Fences may complete on any goroutine.
package eglimage
