package media

import (
	"errors"
	"fmt"
	"sync"

	"romident/internal/chd"
	"romident/internal/errkind"
)

// container is the shared behaviour of Folder and Playlist: an ordered,
// read-only list of child images. Size and checksums come from the first
// child; Read is not supported.
type container struct {
	path     string
	kind     Kind
	children []Image
}

func (c *container) Kind() Kind { return c.kind }

func (c *container) Path() string { return c.path }

// Children returns the child images in order. The slice must not be modified.
func (c *container) Children() []Image { return c.children }

func (c *container) first() (Image, error) {
	if len(c.children) == 0 {
		return nil, errkind.Wrap(errkind.ErrNotReadable, "media", string(c.kind), fmt.Sprintf("%s has no images", c.path), nil)
	}
	return c.children[0], nil
}

func (c *container) Size() (int64, error) {
	child, err := c.first()
	if err != nil {
		return 0, err
	}
	return child.Size()
}

func (c *container) Read(int64, int64) ([]byte, error) {
	return nil, errkind.Wrap(errkind.ErrNotReadable, "media", string(c.kind), c.path, nil)
}

func (c *container) CRC32() (uint32, error) {
	child, err := c.first()
	if err != nil {
		return 0, err
	}
	return child.CRC32()
}

func (c *container) SHA1() (string, error) {
	child, err := c.first()
	if err != nil {
		return "", err
	}
	return child.SHA1()
}

func (c *container) Close() error {
	var errs []error
	for _, child := range c.children {
		if err := child.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Folder is a directory of images, ordered by file name.
type Folder struct {
	container
}

func (*Folder) isImage() {}

// Playlist is an .m3u or .cue sheet; children follow sheet order.
type Playlist struct {
	container
}

func (*Playlist) isImage() {}

// Primary resolves containers to the image identification runs against: the
// first child, recursively. It reports false for an empty container.
func Primary(img Image) (Image, bool) {
	for {
		switch v := img.(type) {
		case *Folder:
			if len(v.children) == 0 {
				return nil, false
			}
			img = v.children[0]
		case *Playlist:
			if len(v.children) == 0 {
				return nil, false
			}
			img = v.children[0]
		case nil:
			return nil, false
		default:
			return img, true
		}
	}
}

// DiscImageByHash is a CHD image. Its content is not decoded; only the SHA1
// recorded in the header is available.
type DiscImageByHash struct {
	path string

	once   sync.Once
	header chd.Header
	err    error
}

func (*DiscImageByHash) isImage() {}

func (d *DiscImageByHash) Kind() Kind { return KindDiscImageByHash }

func (d *DiscImageByHash) Path() string { return d.path }

// Header returns the parsed CHD header.
func (d *DiscImageByHash) Header() (chd.Header, error) {
	d.once.Do(func() {
		d.header, d.err = chd.ReadHeader(d.path)
		if d.err != nil {
			d.err = fmt.Errorf("%s: %w", d.path, d.err)
		}
	})
	return d.header, d.err
}

func (d *DiscImageByHash) SHA1() (string, error) {
	h, err := d.Header()
	if err != nil {
		return "", err
	}
	return h.SHA1Hex(), nil
}

func (d *DiscImageByHash) Size() (int64, error) { return 0, d.notReadable("size") }

func (d *DiscImageByHash) Read(int64, int64) ([]byte, error) { return nil, d.notReadable("read") }

func (d *DiscImageByHash) CRC32() (uint32, error) { return 0, d.notReadable("crc32") }

func (d *DiscImageByHash) Close() error { return nil }

func (d *DiscImageByHash) notReadable(op string) error {
	return errkind.Wrap(errkind.ErrNotReadable, "media", op, d.path+" is only identifiable by header hash", nil)
}
