package types

import (
	"time"
)

type File struct {
	Name    string    `json:"name"`
	URI     string    `json:"uri"`
	Size    string    `json:"size"`
	ModTime time.Time `json:"modTime"`
}

type Notification struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
