package novelty

import "syswatch/pkg/models"

// Key identifies a connection across iterations. State is deliberately not
// part of it.
type Key struct {
	Protocol   models.Protocol
	LocalAddr  string
	LocalPort  string
	RemoteAddr string
	RemotePort string
	PID        int
	HasPID     bool
}

// KeyOf returns the novelty key of a sample.
func KeyOf(c models.ConnectionSample) Key {
	k := Key{
		Protocol:   c.Protocol,
		LocalAddr:  c.LocalAddr,
		LocalPort:  c.LocalPort,
		RemoteAddr: c.RemoteAddr,
		RemotePort: c.RemotePort,
	}
	if c.PID != nil {
		k.PID = *c.PID
		k.HasPID = true
	}
	return k
}

// Set is the key set observed in the previous iteration.
type Set struct {
	keys map[Key]struct{}
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{keys: make(map[Key]struct{})}
}

// Len returns the number of known keys.
func (s *Set) Len() int {
	return len(s.keys)
}

// Contains reports whether key was seen in the previous iteration.
func (s *Set) Contains(key Key) bool {
	_, ok := s.keys[key]
	return ok
}

// Decide returns the samples absent from known, in input order, then
// replaces known with the keys of samples. A connection that drops out for
// one iteration is new again when it comes back.
func Decide(known *Set, samples []models.ConnectionSample) []models.ConnectionSample {
	current := make(map[Key]struct{}, len(samples))
	var fresh []models.ConnectionSample
	for _, c := range samples {
		key := KeyOf(c)
		current[key] = struct{}{}
		if _, ok := known.keys[key]; ok {
			continue
		}
		fresh = append(fresh, c)
	}
	known.keys = current
	return fresh
}
