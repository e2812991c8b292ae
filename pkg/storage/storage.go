package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"shutter-cam/pkg/storage/consts"
	"shutter-cam/pkg/storage/util"
	"shutter-cam/pkg/types"
	"shutter-cam/pkg/utils"
	"shutter-cam/pkg/utils/ps"
)

var (
	ErrUnsupportedMime   = errors.New("unsupported mime type")
	ErrInsufficientSpace = errors.New("insufficient disk space")
	ErrInvalidURI        = errors.New("invalid media uri")
)

// Category is the relative collection a sink is filed under.
type Category string

const (
	CategoryImage Category = "Pictures/Shutter-Image"
	CategoryVideo Category = "Movies/Shutter-Video"
)

// Descriptor names an output before it exists.
type Descriptor struct {
	DisplayName string
	MimeType    string
	Category    Category
}

func (d Descriptor) validate() error {
	if d.DisplayName == "" {
		return fmt.Errorf("display name can not be empty")
	}
	if strings.ContainsAny(d.DisplayName, `/\`) {
		return fmt.Errorf("display name %q contains a path separator", d.DisplayName)
	}
	if d.Category == "" {
		return fmt.Errorf("category can not be empty")
	}
	if strings.Contains(string(d.Category), "..") {
		return fmt.Errorf("invalid category %q", d.Category)
	}
	return nil
}

func extension(mime string) (string, error) {
	switch mime {
	case consts.MimeJPEG:
		return consts.DefaultImageExt, nil
	case consts.MimeAVI, "video/avi":
		return consts.DefaultVideoExt, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMime, mime)
}

// Store files media under root/<category>/ and keeps a small JSON index per
// category.
type Store struct {
	root    string
	minFree uint64
	logger  *zap.SugaredLogger

	lock sync.Mutex
}

type Option func(*Store)

// WithMinFree refuses new sinks when the disk has less than n bytes free.
// Zero disables the check.
func WithMinFree(n uint64) Option {
	return func(s *Store) {
		s.minFree = n
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func New(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("path can not be empty")
	}
	s := &Store{
		root:    filepath.Clean(root),
		minFree: consts.DefaultMinFree,
		logger:  utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := util.MkdirAll(s.root); err != nil {
		return nil, err
	}
	for _, c := range []Category{CategoryImage, CategoryVideo} {
		n, err := util.RemovePending(s.categoryDir(c))
		if err != nil {
			return nil, err
		}
		if n > 0 {
			s.logger.Warnf("removed %d unfinished files from %s", n, c)
		}
	}

	return s, nil
}

func (s *Store) Root() string {
	return s.root
}

// CreateSink reserves a pending file for d. Nothing is visible in the
// category until the sink is committed.
func (s *Store) CreateSink(d Descriptor) (*Sink, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	ext, err := extension(d.MimeType)
	if err != nil {
		return nil, err
	}
	dir := s.categoryDir(d.Category)
	if err = util.MkdirAll(dir); err != nil {
		return nil, err
	}
	if err = s.checkSpace(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	name := d.DisplayName + ext
	return &Sink{
		ID:        id,
		Name:      name,
		desc:      d,
		store:     s,
		tmpPath:   filepath.Join(dir, "."+id+consts.DefaultPendingExt),
		finalPath: filepath.Join(dir, name),
	}, nil
}

func (s *Store) checkSpace() error {
	if s.minFree == 0 {
		return nil
	}
	usage, err := ps.DiskUsage(s.root)
	if err != nil {
		s.logger.Warnf("storage: unable to read disk usage of %s: %s", s.root, err)
		return nil
	}
	if usage.Free < s.minFree {
		return fmt.Errorf("%w: %s free, need %s", ErrInsufficientSpace,
			humanize.IBytes(usage.Free), humanize.IBytes(s.minFree))
	}
	return nil
}

// List returns the committed files of a category, newest first.
func (s *Store) List(c Category) ([]types.File, error) {
	entries, err := os.ReadDir(s.categoryDir(c))
	if err != nil {
		if os.IsNotExist(err) {
			return []types.File{}, nil
		}
		return nil, err
	}
	res := make([]types.File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || e.Name() == consts.DefaultInfoFile {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		res = append(res, types.File{
			Name:    e.Name(),
			URI:     URI(c, e.Name()),
			Size:    humanize.Bytes(uint64(info.Size())),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ModTime.After(res[j].ModTime)
	})

	return res, nil
}

// Latest returns the uri of the last committed file in c, or "" if none.
func (s *Store) Latest(c Category) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	idx, err := s.loadIndex(c)
	if err != nil {
		return "", err
	}
	if idx.Latest == "" {
		return "", nil
	}
	return URI(c, idx.Latest), nil
}

// Resolve maps a media uri to its file path inside the store.
func (s *Store) Resolve(uri string) (string, error) {
	if !strings.HasPrefix(uri, consts.URIScheme) {
		return "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	rel := path.Clean("/" + strings.TrimPrefix(uri, consts.URIScheme))
	p := filepath.Join(s.root, filepath.FromSlash(rel))
	if r, err := filepath.Rel(s.root, p); err != nil || r == "." || strings.HasPrefix(r, "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	return p, nil
}

// URI is the durable identifier of a committed file.
func URI(c Category, name string) string {
	return consts.URIScheme + path.Join(string(c), name)
}

func (s *Store) categoryDir(c Category) string {
	return filepath.Join(s.root, filepath.FromSlash(string(c)))
}

func (s *Store) commit(sink *Sink) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Rename(sink.tmpPath, sink.finalPath); err != nil {
		return "", err
	}
	idx, err := s.loadIndex(sink.desc.Category)
	if err != nil {
		s.logger.Warnf("storage: reset index of %s: %s", sink.desc.Category, err)
		idx = &Index{}
	}
	idx.Count++
	idx.Latest = sink.Name
	if err = s.dumpIndex(sink.desc.Category, idx); err != nil {
		s.logger.Warnf("storage: dump index of %s: %s", sink.desc.Category, err)
	}

	return URI(sink.desc.Category, sink.Name), nil
}
