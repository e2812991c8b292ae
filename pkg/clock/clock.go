// Package clock provides the wall clock used to name captures. Boards
// without a battery-backed RTC boot with a wrong time, so the clock can be
// corrected against an NTP server.
package clock

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"shutter-cam/pkg/utils"
)

const (
	DefaultServer = "pool.ntp.org"

	// FileNameLayout matches yyyy-MM-dd-HH-mm-ss without the milliseconds,
	// which FileName appends.
	FileNameLayout = "2006-01-02-15-04-05"
)

type queryFunc func(host string) (time.Duration, error)

type Clock struct {
	server string
	offset atomic.Int64
	synced atomic.Bool
	query  queryFunc
	logger *zap.SugaredLogger
}

func New(server string, logger *zap.SugaredLogger) *Clock {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Clock{server: server, query: ntpOffset, logger: logger}
}

func ntpOffset(host string) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(host, ntp.QueryOptions{Timeout: 3 * time.Second})
	if err != nil {
		return 0, err
	}
	if err = resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Sync queries the server once. On failure the previous offset is kept, so
// an unsynced clock keeps returning local time.
func (c *Clock) Sync() error {
	if c.server == "" {
		return nil
	}
	offset, err := c.query(c.server)
	if err != nil {
		return fmt.Errorf("ntp query %s: %w", c.server, err)
	}
	c.offset.Store(int64(offset))
	c.synced.Store(true)
	c.logger.Infof("clock: synced with %s, offset %s", c.server, offset)
	return nil
}

// Resync starts re-running Sync on a cron schedule such as "@every 6h".
// Overlapping runs are skipped. Stop the returned cron on shutdown.
func (c *Clock) Resync(spec string) (*cron.Cron, error) {
	l := cronLogger{c.logger}
	cr := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	_, err := cr.AddFunc(spec, func() {
		if err := c.Sync(); err != nil {
			c.logger.Warnf("clock: %s", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ntp resync schedule %q: %w", spec, err)
	}
	cr.Start()

	return cr, nil
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Synced reports whether any Sync succeeded.
func (c *Clock) Synced() bool {
	return c.synced.Load()
}

func (c *Clock) Now() time.Time {
	return time.Now().Add(time.Duration(c.offset.Load()))
}

// FileName formats t as yyyy-MM-dd-HH-mm-ss-SSS.
func FileName(t time.Time) string {
	return fmt.Sprintf("%s-%03d", t.Format(FileNameLayout), t.Nanosecond()/int(time.Millisecond))
}
