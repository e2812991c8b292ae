// Package webdav exposes the media directory over WebDAV on demand.
package webdav

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"shutter-cam/pkg/utils"
)

type Server struct {
	lock   sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	addr   string
	port   int
	dir    string
	logger *zap.SugaredLogger
}

func New(ctx context.Context, port int, dir string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Server{
		ctx:    ctx,
		port:   port,
		dir:    dir,
		logger: logger,
	}
}

// Handler serves dir without a listener of its own.
func (s *Server) Handler() http.Handler {
	return &webdav.Handler{
		FileSystem: webdav.Dir(s.dir),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				s.logger.Errorf("WEBDAV [%s]: %s, err: %s", r.Method, r.URL, err)
			}
		},
	}
}

// Start listens on the configured port. It returns false if the server is
// already running.
func (s *Server) Start() (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cancel != nil {
		return false, nil
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.addr = ln.Addr().String()
	s.serve(ctx, ln)
	s.logger.Infof("webdav: serving %s on %s", s.dir, s.addr)

	return true, nil
}

// Stop returns false if the server was not running.
func (s *Server) Stop() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	s.addr = ""
	return true
}

func (s *Server) Running() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cancel != nil
}

// Addr is the listen address while running.
func (s *Server) Addr() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.addr
}

func (s *Server) serve(ctx context.Context, ln net.Listener) {
	svr := &http.Server{Handler: s.Handler()}

	go func() {
		if err := svr.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("webdav server err: %s", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srcCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svr.Shutdown(srcCtx); err != nil {
			s.logger.Errorf("shutdown webdav server err: %s", err)
		}
	}()
}
