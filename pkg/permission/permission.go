// Package permission checks and requests the capabilities the camera needs.
package permission

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"shutter-cam/pkg/utils"
)

type Capability string

const (
	Camera             Capability = "camera"
	Microphone         Capability = "microphone"
	StorageWriteLegacy Capability = "storage-write-legacy"
)

// Set maps each capability to whether it is required.
type Set map[Capability]bool

// DefaultSet requires the camera, asks for the microphone and requires
// legacy storage access only on the legacy layout.
func DefaultSet(legacyStorage bool) Set {
	s := Set{
		Camera:     true,
		Microphone: false,
	}
	if legacyStorage {
		s[StorageWriteLegacy] = true
	}
	return s
}

// Names returns every capability in the set, sorted.
func (s Set) Names() []Capability {
	res := make([]Capability, 0, len(s))
	for c := range s {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

func (s Set) Required() []Capability {
	var res []Capability
	for _, c := range s.Names() {
		if s[c] {
			res = append(res, c)
		}
	}
	return res
}

// Provider is the platform side. Request may prompt and calls done once,
// from any goroutine, with the state of every requested capability.
type Provider interface {
	Granted(c Capability) bool
	Request(caps []Capability, done func(map[Capability]bool))
}

// Gate resolves a Set against a Provider.
type Gate struct {
	provider Provider
	set      Set
	logger   *zap.SugaredLogger
}

func NewGate(provider Provider, set Set, logger *zap.SugaredLogger) *Gate {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Gate{provider: provider, set: set, logger: logger}
}

func (g *Gate) Set() Set {
	return g.set
}

// CheckAll reports whether every required capability is granted now.
func (g *Gate) CheckAll() bool {
	for _, c := range g.set.Required() {
		if !g.provider.Granted(c) {
			return false
		}
	}
	return true
}

// Granted checks one capability on its own, required or not.
func (g *Gate) Granted(c Capability) bool {
	return g.provider.Granted(c)
}

// RequestAll requests the whole set and calls done exactly once with a
// single outcome: true only if every required capability was granted.
func (g *Gate) RequestAll(done func(granted bool)) {
	var once sync.Once
	g.provider.Request(g.set.Names(), func(res map[Capability]bool) {
		once.Do(func() {
			granted := true
			for _, c := range g.set.Required() {
				if !res[c] {
					g.logger.Warnf("permission: %s not granted", c)
					granted = false
				}
			}
			if required, asked := g.set[Microphone]; asked && !required && !res[Microphone] {
				g.logger.Infof("permission: %s not granted, video will be recorded without audio", Microphone)
			}
			done(granted)
		})
	})
}

// Static is a Provider with a fixed answer per capability. Request answers
// on a new goroutine.
type Static struct {
	mu     sync.RWMutex
	grants map[Capability]bool
	asked  int
}

func NewStatic(grants map[Capability]bool) *Static {
	s := &Static{grants: make(map[Capability]bool)}
	for c, ok := range grants {
		s.grants[c] = ok
	}
	return s
}

// Grant changes the answer for c, as a user would in system settings.
func (s *Static) Grant(c Capability, ok bool) {
	s.mu.Lock()
	s.grants[c] = ok
	s.mu.Unlock()
}

func (s *Static) Granted(c Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[c]
}

// Requests is the number of Request calls so far.
func (s *Static) Requests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.asked
}

func (s *Static) Request(caps []Capability, done func(map[Capability]bool)) {
	s.mu.Lock()
	s.asked++
	res := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		res[c] = s.grants[c]
	}
	s.mu.Unlock()
	go done(res)
}
