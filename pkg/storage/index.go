package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"shutter-cam/pkg/storage/consts"
)

// Index is the per-category info file.
type Index struct {
	Count  int    `json:"count"`
	Latest string `json:"latest"`

	UpdateAt time.Time `json:"updateAt"`
}

func (s *Store) indexPath(c Category) string {
	return filepath.Join(s.categoryDir(c), consts.DefaultInfoFile)
}

func (s *Store) loadIndex(c Category) (*Index, error) {
	data, err := os.ReadFile(s.indexPath(c))
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{}, nil
		}
		return nil, fmt.Errorf("read index err: %w", err)
	}
	idx := &Index{}
	if err = json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("unmarshal index err: %w", err)
	}

	return idx, nil
}

func (s *Store) dumpIndex(c Category, idx *Index) error {
	idx.UpdateAt = time.Now()
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}

	return os.WriteFile(s.indexPath(c), data, consts.DefaultFilePerm)
}
