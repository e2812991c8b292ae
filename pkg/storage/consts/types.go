package consts

const (
	DefaultInfoFile   = "info.json"
	DefaultPendingExt = ".pending"

	DefaultImageExt = ".jpg"
	DefaultVideoExt = ".avi"

	MimeJPEG = "image/jpeg"
	MimeAVI  = "video/x-msvideo"

	DefaultFilePerm = 0660
	DefaultDirPerm  = 0750

	// DefaultMinFree keeps sinks from filling the disk: 64MiB.
	DefaultMinFree = 64 << 20

	URIScheme = "media://"
)
