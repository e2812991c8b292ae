package camera

const (
	DefaultBackDevice  = "/dev/video0"
	DefaultFrontDevice = "/dev/video1"
	DefaultWidth       = 1280
	DefaultHeight      = 720
	DefaultFPS         = 15
)

// DefaultSettings are control values applied after a V4L2 stream starts.
var DefaultSettings = map[uint32]int32{
	10094849: 1,  // Auto Exposure: Auto Mode
	10291459: 90, // Compression Quality: 90
}

type V4L2Config struct {
	Devices map[Selector]string
	Width   int
	Height  int
	FPS     int
	// Settings maps V4L2 control ids to values.
	Settings map[uint32]int32
}

func (c *V4L2Config) setDefaults() {
	if c.Devices == nil {
		c.Devices = map[Selector]string{
			Back:  DefaultBackDevice,
			Front: DefaultFrontDevice,
		}
	}
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = DefaultWidth, DefaultHeight
	}
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	if c.Settings == nil {
		c.Settings = DefaultSettings
	}
}
