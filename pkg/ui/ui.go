// Package ui holds the presentation side of the controllers: a sink that only
// receives affordance changes and user notices.
package ui

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"shutter-cam/pkg/types"
	"shutter-cam/pkg/utils"
)

// Sink is fire-and-forget; nothing it returns is consumed.
type Sink interface {
	SetAffordanceEnabled(enabled bool)
	SetAffordanceLabel(text string)
	NotifyUser(message string)
}

const (
	LabelStart = "Start Capture"
	LabelStop  = "Stop Capture"
)

const DefaultHistory = 32

// Affordance is the state of the video button.
type Affordance struct {
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

// Panel keeps the latest affordance and recent notices for the web panel.
type Panel struct {
	now func() time.Time

	mu         sync.RWMutex
	affordance Affordance
	notices    []types.Notification
	size       int
}

func NewPanel(size int, now func() time.Time) *Panel {
	if size <= 0 {
		size = DefaultHistory
	}
	if now == nil {
		now = time.Now
	}
	return &Panel{
		now:        now,
		affordance: Affordance{Enabled: false, Label: LabelStart},
		size:       size,
	}
}

func (p *Panel) SetAffordanceEnabled(enabled bool) {
	p.mu.Lock()
	p.affordance.Enabled = enabled
	p.mu.Unlock()
}

func (p *Panel) SetAffordanceLabel(text string) {
	p.mu.Lock()
	p.affordance.Label = text
	p.mu.Unlock()
}

func (p *Panel) NotifyUser(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, types.Notification{Message: message, At: p.now()})
	if n := len(p.notices) - p.size; n > 0 {
		p.notices = append(p.notices[:0:0], p.notices[n:]...)
	}
}

func (p *Panel) Affordance() Affordance {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.affordance
}

// Notifications returns the recent notices, oldest first.
func (p *Panel) Notifications() []types.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]types.Notification{}, p.notices...)
}

// Log writes every call to a zap logger.
type Log struct {
	logger *zap.SugaredLogger
}

func NewLog(logger *zap.SugaredLogger) *Log {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Log{logger: logger}
}

func (l *Log) SetAffordanceEnabled(enabled bool) {
	l.logger.Debugf("ui: affordance enabled=%v", enabled)
}

func (l *Log) SetAffordanceLabel(text string) {
	l.logger.Debugf("ui: affordance label=%q", text)
}

func (l *Log) NotifyUser(message string) {
	l.logger.Infof("ui: %s", message)
}

type tee []Sink

// Tee forwards every call to all sinks in order.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) SetAffordanceEnabled(enabled bool) {
	for _, s := range t {
		s.SetAffordanceEnabled(enabled)
	}
}

func (t tee) SetAffordanceLabel(text string) {
	for _, s := range t {
		s.SetAffordanceLabel(text)
	}
}

func (t tee) NotifyUser(message string) {
	for _, s := range t {
		s.NotifyUser(message)
	}
}
