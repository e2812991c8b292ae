package session

import (
	"sync"
	"sync/atomic"
	"time"

	"shutter-cam/pkg/camera"
	"shutter-cam/pkg/video"
)

// Info describes the bound session.
type Info struct {
	Selector camera.Selector   `json:"selector"`
	UseCases camera.UseCaseSet `json:"-"`
	Names    []string          `json:"useCases"`
	Spec     camera.Spec       `json:"spec"`
	Since    time.Time         `json:"since"`
}

type stillRequest struct {
	once    sync.Once
	handler func([]byte, error)
}

func (r *stillRequest) complete(data []byte, err error) {
	r.once.Do(func() {
		go r.handler(data, err)
	})
}

// Session is one bound set of use-cases on one stream.
type Session struct {
	info   Info
	stream camera.Stream
	done   chan struct{}

	unbinding atomic.Bool

	mu      sync.Mutex
	closed  bool
	stills  []*stillRequest
	encoder *video.Encoder
}

func newSession(sel camera.Selector, useCases camera.UseCaseSet, stream camera.Stream) *Session {
	return &Session{
		info: Info{
			Selector: sel,
			UseCases: useCases,
			Names:    useCases.Names(),
			Spec:     stream.Spec(),
			Since:    time.Now(),
		},
		stream: stream,
		done:   make(chan struct{}),
	}
}

func (s *Session) addStill(r *stillRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.stills = append(s.stills, r)
	return true
}

func (s *Session) takeStills() []*stillRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.stills
	s.stills = nil
	return res
}

func (s *Session) activeEncoder() *video.Encoder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoder
}

// startEncoder reserves the encoder slot and starts one through start.
func (s *Session) startEncoder(start func() *video.Encoder) (*video.Encoder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrUnbound
	}
	if s.encoder != nil {
		return nil, ErrRecordingActive
	}
	s.encoder = start()
	return s.encoder, nil
}

// clearEncoder frees the slot if it still holds *e. e is read under the
// lock because it is assigned inside startEncoder.
func (s *Session) clearEncoder(e **video.Encoder) {
	s.mu.Lock()
	if *e != nil && s.encoder == *e {
		s.encoder = nil
	}
	s.mu.Unlock()
}

// shutdown fails pending stills and stops the encoder. It returns the
// encoder so the caller can wait for it to finalize.
func (s *Session) shutdown(reason error) *video.Encoder {
	s.mu.Lock()
	s.closed = true
	stills := s.stills
	s.stills = nil
	enc := s.encoder
	s.mu.Unlock()

	for _, r := range stills {
		r.complete(nil, reason)
	}
	if enc != nil {
		enc.Stop()
	}
	return enc
}
