package media

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// cueTrack is one FILE entry of a cue sheet with the mode of its first track.
type cueTrack struct {
	File       string
	Mode       string
	SectorSize int64
	Audio      bool
}

// parseCue reads FILE and TRACK commands. Each FILE takes the mode of its
// first TRACK; later tracks inside the same file are ignored.
func parseCue(r io.Reader) ([]cueTrack, error) {
	var (
		tracks  []cueTrack
		current *cueTrack
		typed   bool
	)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := splitCueFields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "FILE":
			if len(fields) < 2 {
				return nil, fmt.Errorf("cue line %d: FILE without name", line)
			}
			tracks = append(tracks, cueTrack{File: fields[1]})
			current = &tracks[len(tracks)-1]
			typed = false
		case "TRACK":
			if current == nil {
				return nil, fmt.Errorf("cue line %d: TRACK before FILE", line)
			}
			if typed || len(fields) < 3 {
				continue
			}
			typed = true
			if err := current.setMode(fields[2]); err != nil {
				return nil, fmt.Errorf("cue line %d: %w", line, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (t *cueTrack) setMode(value string) error {
	value = strings.ToUpper(value)
	if value == "AUDIO" {
		t.Audio = true
		return nil
	}
	mode, size, ok := strings.Cut(value, "/")
	if !ok {
		return fmt.Errorf("track mode %q has no sector size", value)
	}
	n, err := strconv.ParseInt(size, 10, 64)
	if err != nil || n <= 0 {
		return fmt.Errorf("track mode %q: bad sector size", value)
	}
	t.Mode = mode
	t.SectorSize = n
	return nil
}

// splitCueFields splits on whitespace, keeping double-quoted runs intact.
func splitCueFields(line string) []string {
	var (
		fields []string
		b      strings.Builder
		quoted bool
		inTok  bool
	)
	for _, r := range strings.TrimSpace(line) {
		switch {
		case r == '"':
			quoted = !quoted
			inTok = true
		case (r == ' ' || r == '\t') && !quoted:
			if inTok {
				fields = append(fields, b.String())
				b.Reset()
				inTok = false
			}
		default:
			b.WriteRune(r)
			inTok = true
		}
	}
	if inTok {
		fields = append(fields, b.String())
	}
	return fields
}

func openCue(path string, opts Options) (*Playlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tracks, err := parseCue(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	p := &Playlist{container{path: path, kind: KindPlaylist}}
	for _, track := range tracks {
		if track.Audio || track.SectorSize == 0 {
			continue
		}
		p.children = append(p.children, newDiscTrack(resolveRelative(dir, track.File), track.SectorSize, track.Mode, opts))
	}
	return p, nil
}

// openM3U opens each non-comment line as a child image, relative to the
// playlist's directory. The playlist file is closed before children open.
func openM3U(path string, opts Options, parents []string) (*Playlist, error) {
	parents, err := enterContainer(path, parents)
	if err != nil {
		return nil, err
	}
	entries, err := readM3U(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	p := &Playlist{container{path: path, kind: KindPlaylist}}
	for _, entry := range entries {
		child, err := openPath(resolveRelative(dir, entry), opts, parents)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("%s: entry %q: %w", path, entry, err)
		}
		p.children = append(p.children, child)
	}
	return p, nil
}

func readM3U(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func resolveRelative(dir, name string) string {
	name = filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
