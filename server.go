package main

import (
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"shutter-cam/pkg/app"
	"shutter-cam/pkg/camera"
	"shutter-cam/pkg/recording"
	"shutter-cam/pkg/session"
	"shutter-cam/pkg/still"
	"shutter-cam/pkg/storage"
	"shutter-cam/pkg/utils"
	"shutter-cam/pkg/utils/ps"
	"shutter-cam/pkg/webdav"
)

const (
	webDavStart    = "start"
	webDavShutdown = "shutdown"
)

var categories = map[string]storage.Category{
	"image": storage.CategoryImage,
	"video": storage.CategoryVideo,
}

type server struct {
	ctrl    *app.Controller
	store   *storage.Store
	dav     *webdav.Server
	logger  *zap.SugaredLogger
	origins []string // cors, empty allows any
}

func newRouter(s *server, statics string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(utils.Cors(s.origins...))
	if statics != "" {
		if err := registerStaticsDir(r, statics, "/"); err != nil {
			s.logger.Warnf("web panel disabled: %s", err)
		}
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})

	apiRouter := r.Group("/api")
	apiRouter.GET("/state", s.getState)
	apiRouter.POST("/photo", s.takePhoto)
	apiRouter.POST("/video", s.toggleVideo)
	apiRouter.POST("/permissions/retry", s.retryPermissions)
	apiRouter.PUT("/session", s.rebind)

	deviceRouter := apiRouter.Group("/device")
	deviceRouter.GET("/realtime/video", s.realtimeVideo)
	deviceRouter.GET("/status", s.deviceStatus)
	deviceRouter.PUT("/webdav", s.ctlWebdav)

	mediaRouter := apiRouter.Group("/media")
	mediaRouter.GET("/:category", s.listMedia)
	mediaRouter.GET("/:category/latest", s.latestMedia)
	mediaRouter.GET("/:category/files/:name", s.getMedia)

	return r
}

func (s *server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, jsend.Success(s.ctrl.State()))
}

func (s *server) takePhoto(c *gin.Context) {
	if err := s.ctrl.TakePhoto(); err != nil {
		if errors.Is(err, still.ErrNotBound) {
			c.JSON(http.StatusConflict, jsend.SimpleErr(err.Error()))
			return
		}
		internalErr(c, err)
		return
	}
	c.JSON(http.StatusOK, jsend.Success("photo requested"))
}

func (s *server) toggleVideo(c *gin.Context) {
	if err := s.ctrl.ToggleRecording(); err != nil {
		if errors.Is(err, recording.ErrInvalidState) || errors.Is(err, recording.ErrNotBound) {
			c.JSON(http.StatusConflict, jsend.SimpleErr(err.Error()))
			return
		}
		internalErr(c, err)
		return
	}
	c.JSON(http.StatusOK, jsend.Success(s.ctrl.State().Recording))
}

func (s *server) retryPermissions(c *gin.Context) {
	if err := s.ctrl.RetryPermissions(); err != nil {
		internalErr(c, err)
		return
	}
	c.JSON(http.StatusOK, jsend.Success(s.ctrl.State().Permissions))
}

type rebindRequest struct {
	Selector string   `json:"selector"`
	UseCases []string `json:"useCases" binding:"required"`
}

func (s *server) rebind(c *gin.Context) {
	var req rebindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	var (
		sel camera.Selector
		err error
	)
	if req.Selector != "" {
		if sel, err = camera.ParseSelector(req.Selector); err != nil {
			c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
			return
		}
	}
	useCases, err := camera.ParseUseCases(req.UseCases)
	if err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}

	err = s.ctrl.Rebind(c.Request.Context(), sel, useCases)
	var bindErr *session.BindError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, jsend.Success(s.ctrl.State().Session))
	case errors.Is(err, app.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, jsend.SimpleErr(err.Error()))
	case errors.As(err, &bindErr):
		c.JSON(http.StatusConflict, jsend.SimpleErr(err.Error()))
	default:
		internalErr(c, err)
	}
}

func (s *server) realtimeVideo(c *gin.Context) {
	frames, cancel := s.ctrl.Preview().Subscribe()
	defer cancel()

	mimeWriter := multipart.NewWriter(c.Writer)
	c.Header("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mimeWriter.Boundary()))
	partHeader := make(textproto.MIMEHeader)
	partHeader.Add("Content-Type", "image/jpeg")

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			partWriter, err := mimeWriter.CreatePart(partHeader)
			if err != nil {
				s.logger.Warnf("failed to create multi-part writer: %s", err)
				return
			}
			if _, err = partWriter.Write(frame); err != nil {
				s.logger.Debugf("preview viewer left: %s", err)
				return
			}
			c.Writer.Flush()
		}
	}
}

func (s *server) deviceStatus(c *gin.Context) {
	st, err := ps.Snapshot(s.store.Root())
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(st))
}

func (s *server) ctlWebdav(c *gin.Context) {
	op := c.Query("op")
	switch op {
	case webDavStart:
		s.startWebdav(c)
	case webDavShutdown:
		s.shutdownWebdav(c)
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
	}
}

func (s *server) startWebdav(c *gin.Context) {
	started, err := s.dav.Start()
	if err != nil {
		internalErr(c, err)
		return
	}
	if !started {
		c.JSON(http.StatusOK, jsend.Success("the webdav service is already enabled"))
		return
	}
	c.JSON(http.StatusOK, jsend.Success(s.dav.Addr()))
}

func (s *server) shutdownWebdav(c *gin.Context) {
	if !s.dav.Stop() {
		c.JSON(http.StatusOK, jsend.SimpleErr("the webdav service has been shut down"))
		return
	}
	c.JSON(http.StatusOK, jsend.Success(nil))
}

func category(c *gin.Context) (storage.Category, bool) {
	cat, ok := categories[c.Param("category")]
	if !ok {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("unknown media category"))
	}
	return cat, ok
}

func (s *server) listMedia(c *gin.Context) {
	cat, ok := category(c)
	if !ok {
		return
	}
	files, err := s.store.List(cat)
	if err != nil {
		internalErr(c, err)
		return
	}
	c.JSON(http.StatusOK, jsend.Success(files))
}

func (s *server) latestMedia(c *gin.Context) {
	cat, ok := category(c)
	if !ok {
		return
	}
	uri, err := s.store.Latest(cat)
	if err != nil {
		internalErr(c, err)
		return
	}
	if uri == "" {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("no media yet"))
		return
	}
	c.JSON(http.StatusOK, jsend.Success(uri))
}

func (s *server) getMedia(c *gin.Context) {
	cat, ok := category(c)
	if !ok {
		return
	}
	p, err := s.store.Resolve(storage.URI(cat, c.Param("name")))
	if err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	if _, err = os.Stat(p); err != nil {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("media not found"))
		return
	}
	c.File(p)
}

func registerStaticsDir(group gin.IRoutes, dir, relativeGroup string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("the specified directory %s does not exist", dir)
	}
	dir = filepath.ToSlash(filepath.Clean(dir))
	group.StaticFile(relativeGroup, filepath.Join(dir, "index.html"))
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relativePath := path.Join(relativeGroup, strings.Replace(filepath.ToSlash(p), dir, "", 1))
			group.StaticFile(relativePath, p)
		}
		return nil
	})
}

func internalErr(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
}
