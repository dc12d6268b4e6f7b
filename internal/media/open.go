package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"romident/internal/errkind"
	"romident/internal/logging"
)

// Open returns the Image variant for path, chosen by extension:
//
//	directory          Folder (regular files, sorted by name)
//	.gcz               BlockImage
//	.chd               DiscImageByHash
//	.zip .xz .gz       ArchiveEntry ("a.zip#member" selects a zip member)
//	.7z .rar ...       ErrUnsupportedFormat
//	.cue               Playlist of DiscTracks
//	.m3u .m3u8         Playlist
//	.iso               DiscTrack with 2048-byte sectors
//	anything else      PlainFile
//
// Content is not touched until Size, Read or a checksum is requested.
func Open(path string, opts Options) (Image, error) {
	return openPath(path, opts, nil)
}

// maxNesting bounds how deep playlists and folders may reference each other.
const maxNesting = 16

// openPath is Open with the chain of containers currently being opened, so a
// playlist that lists itself, directly or through others, fails instead of
// recursing.
func openPath(path string, opts Options, parents []string) (Image, error) {
	archive, member := splitMember(path)
	info, err := os.Stat(archive)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return openFolder(archive, opts, parents)
	}

	ext := strings.ToLower(filepath.Ext(archive))
	switch {
	case ext == ".gcz":
		return newBlockImage(path, opts), nil
	case ext == ".chd":
		return &DiscImageByHash{path: path}, nil
	case isArchiveExt(ext):
		return newArchiveEntry(archive, member, opts), nil
	case isUnsupportedArchiveExt(ext):
		return nil, errkind.Wrap(errkind.ErrUnsupportedFormat, "media", "open", fmt.Sprintf("unknown archive type %q", ext), nil)
	case ext == ".cue":
		return openCue(path, opts)
	case ext == ".m3u" || ext == ".m3u8":
		return openM3U(path, opts, parents)
	case ext == ".iso":
		return newDiscTrack(path, 2048, "", opts), nil
	default:
		return newPlainFile(path, opts), nil
	}
}

// splitMember separates "archive.zip#member". Paths whose prefix before the
// last separator is not an archive are returned unchanged.
func splitMember(path string) (string, string) {
	idx := strings.LastIndex(path, MemberSeparator)
	if idx <= 0 || idx == len(path)-1 {
		return path, ""
	}
	if !isArchiveExt(strings.ToLower(filepath.Ext(path[:idx]))) {
		return path, ""
	}
	if _, err := os.Stat(path); err == nil {
		return path, ""
	}
	return path[:idx], path[idx+1:]
}

// enterContainer appends path to parents, rejecting cycles and chains deeper
// than maxNesting.
func enterContainer(path string, parents []string) ([]string, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}
	if slices.Contains(parents, key) {
		return nil, errkind.Wrap(errkind.ErrUnsupportedFormat, "media", "open", fmt.Sprintf("%s references itself", path), nil)
	}
	if len(parents) >= maxNesting {
		return nil, errkind.Wrap(errkind.ErrUnsupportedFormat, "media", "open", fmt.Sprintf("%s is nested more than %d containers deep", path, maxNesting), nil)
	}
	return append(parents[:len(parents):len(parents)], key), nil
}

func openFolder(path string, opts Options, parents []string) (*Folder, error) {
	parents, err := enterContainer(path, parents)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger(opts.Logger, "media")
	folder := &Folder{container{path: path, kind: KindFolder}}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		childPath := filepath.Join(path, entry.Name())
		child, err := openPath(childPath, opts, parents)
		if err != nil {
			if errors.Is(err, errkind.ErrUnsupportedFormat) {
				logging.WarnWithContext(logger, "skipping unsupported folder entry", "folder_entry_skipped",
					logging.String(logging.FieldPath, childPath),
					logging.Error(err),
					logging.String(logging.FieldImpact, "entry is not considered for identification"),
					logging.String(logging.FieldErrorHint, "extract the archive or convert it to zip"),
				)
				continue
			}
			folder.Close()
			return nil, err
		}
		folder.children = append(folder.children, child)
	}
	return folder, nil
}
