package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shutter-cam/pkg/app"
	"shutter-cam/pkg/camera"
	"shutter-cam/pkg/clock"
	"shutter-cam/pkg/permission"
	"shutter-cam/pkg/storage"
	"shutter-cam/pkg/ui"
	"shutter-cam/pkg/utils"
	"shutter-cam/pkg/webdav"
)

var (
	webdavPort = flag.Int("webdav-port", 9998, "webdav port")
	port       = flag.Int("port", 9999, "ui port")
	storageDir = flag.String("dir", "./shutter-cam", "media directory")
	staticsDir = flag.String("statics", "./statics", "web panel files, skipped if missing")
	origins    = flag.String("allow-origins", "", "comma separated cors origins, empty allows any")

	driverName  = flag.String("driver", "v4l2", "camera driver: v4l2 or virtual")
	selector    = flag.String("camera", string(camera.Back), "camera to bind: back or front")
	backDevice  = flag.String("back-device", camera.DefaultBackDevice, "")
	frontDevice = flag.String("front-device", camera.DefaultFrontDevice, "")
	soundDir    = flag.String("sound-dir", "/dev/snd", "ALSA device directory used for the microphone check")
	width       = flag.Int("width", camera.DefaultWidth, "")
	height      = flag.Int("height", camera.DefaultHeight, "")
	fps         = flag.Int("fps", camera.DefaultFPS, "")
	quality     = flag.Int("jpeg-quality", camera.DefaultJPEGQuality, "quality of encoded previews and photos")

	enableVideo   = flag.Bool("enable-video", false, "bind the video use-case at startup")
	recordAudio   = flag.Bool("audio", true, "request audio for recordings, needs the microphone")
	legacyStorage = flag.Bool("legacy-storage", false, "require write access to the media directory")
	minFree       = flag.String("min-free", "64MiB", "refuse new captures below this much free disk")
	ntpServer     = flag.String("ntp", clock.DefaultServer, "ntp server for capture names, empty to use local time")
	ntpResync     = flag.String("ntp-resync", "@every 6h", "cron schedule for re-syncing the clock, empty to sync once")
	logLevel      = flag.String("log-level", "info", "")

	logger *zap.SugaredLogger
)

func main() {
	flag.Parse()
	if level, err := zapcore.ParseLevel(*logLevel); err == nil {
		utils.SetLevel(level)
	}
	logger = utils.GetLogger()
	defer logger.Sync()

	if *logLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	free, err := humanize.ParseBytes(*minFree)
	if err != nil {
		logger.Fatalf("invalid -min-free %q: %s", *minFree, err)
	}
	stg, err := storage.New(*storageDir, storage.WithMinFree(free), storage.WithLogger(logger))
	if err != nil {
		logger.Fatal(err)
	}

	sel, err := camera.ParseSelector(*selector)
	if err != nil {
		logger.Fatal(err)
	}
	driver, err := newDriver()
	if err != nil {
		logger.Fatal(err)
	}

	clk := clock.New(*ntpServer, logger)
	go func() {
		if err := clk.Sync(); err != nil {
			logger.Warnf("clock: %s, using local time", err)
		}
	}()
	if *ntpServer != "" && *ntpResync != "" {
		cr, err := clk.Resync(*ntpResync)
		if err != nil {
			logger.Fatal(err)
		}
		defer cr.Stop()
	}

	// the virtual camera has no device nodes to check
	var provider permission.Provider = permission.NewStatic(map[permission.Capability]bool{
		permission.Camera:             true,
		permission.StorageWriteLegacy: true,
	})
	if *driverName != "virtual" {
		provider = permission.NewSystem(permission.SystemPaths{
			Cameras: []string{*backDevice, *frontDevice},
			Sound:   *soundDir,
			Media:   stg.Root(),
		}, logger)
	}

	ctrl := app.New(app.Config{
		Selector:    sel,
		EnableVideo: *enableVideo,
		RecordAudio: *recordAudio,
		JPEGQuality: *quality,
	}, driver, stg, permission.NewGate(provider, permission.DefaultSet(*legacyStorage), logger),
		app.WithLogger(logger),
		app.WithClock(clk),
		app.WithUI(ui.NewLog(logger)),
	)
	ctrl.Start()

	dav := webdav.New(context.Background(), *webdavPort, stg.Root(), logger)
	defer dav.Stop()

	s := &server{ctrl: ctrl, store: stg, dav: dav, logger: logger}
	if *origins != "" {
		s.origins = strings.Split(*origins, ",")
	}
	r := newRouter(s, *staticsDir)
	if err = utils.ListenAndServe(context.Background(), r, *port); err != nil {
		logger.Error(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = ctrl.Shutdown(ctx); err != nil {
		logger.Errorf("shutdown: %s", err)
	}
}

func newDriver() (camera.Driver, error) {
	switch *driverName {
	case "v4l2":
		return camera.NewV4L2Driver(camera.V4L2Config{
			Devices: map[camera.Selector]string{
				camera.Back:  *backDevice,
				camera.Front: *frontDevice,
			},
			Width:  *width,
			Height: *height,
			FPS:    *fps,
		}, logger), nil
	case "virtual":
		return camera.NewVirtualDriver(*width, *height, *fps), nil
	}
	return nil, fmt.Errorf("unknown driver %q", *driverName)
}
