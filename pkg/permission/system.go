package permission

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"shutter-cam/pkg/utils"
)

// System grants a capability when the process can open the nodes behind it.
// There is nobody to prompt, so Request re-checks the nodes.
type System struct {
	paths  map[Capability][]string
	logger *zap.SugaredLogger
}

// SystemPaths lists the nodes checked for each capability. A capability
// without paths is never granted.
type SystemPaths struct {
	Cameras []string
	// Sound is the ALSA device directory, usually /dev/snd.
	Sound string
	Media string
}

func NewSystem(p SystemPaths, logger *zap.SugaredLogger) *System {
	if logger == nil {
		logger = utils.GetLogger()
	}
	s := &System{paths: make(map[Capability][]string), logger: logger}
	s.paths[Camera] = p.Cameras
	if p.Sound != "" {
		s.paths[Microphone] = []string{p.Sound}
	}
	if p.Media != "" {
		s.paths[StorageWriteLegacy] = []string{p.Media}
	}
	return s
}

// Granted is true when at least one node of c is usable.
func (s *System) Granted(c Capability) bool {
	for _, p := range s.paths[c] {
		var err error
		if c == Microphone {
			err = soundAccess(p)
		} else {
			err = access(p, c == StorageWriteLegacy)
		}
		if err == nil {
			return true
		}
		s.logger.Debugf("permission: %s via %s: %s", c, p, err)
	}
	return false
}

func (s *System) Request(caps []Capability, done func(map[Capability]bool)) {
	go func() {
		res := make(map[Capability]bool, len(caps))
		for _, c := range caps {
			res[c] = s.Granted(c)
		}
		done(res)
	}()
}

// soundAccess needs a capture pcm under dir.
func soundAccess(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "pcmC*D*c"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return os.ErrNotExist
	}
	for _, m := range matches {
		if err = access(m, false); err == nil {
			return nil
		}
	}
	return err
}
