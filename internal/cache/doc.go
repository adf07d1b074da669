// Package cache provides the bounded lookup-table cache used by the layout
// translator.
//
// Twiddle address tables depend only on the power-of-two dimensions of a
// surface, and streaming producers hit the same few sizes every frame. The
// cache keeps the most recently used tables and drops the least recently
// used one once the capacity is reached.
//
//	tables := cache.New[key, *table](64)
//	tab := tables.GetOrCreate(k, func() *table { return build(k) })
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
