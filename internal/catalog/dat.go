package catalog

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type datState int

const (
	datTop datState = iota
	datHeader
	datGame
	datRom
)

// datParser is a single forward pass over DAT lines. Multi-line rom blocks
// are collected into one logical line and parsed when their ")" arrives.
type datParser struct {
	path    string
	db      *Database
	state   datState
	line    int
	game    *SoftwareRecord
	pending strings.Builder
	romLine int
}

// ParseDAT reads a line-oriented DAT catalog. Every game becomes a record
// with one part per rom or disk entry. path is used for error messages and
// as the fallback catalog name.
func ParseDAT(r io.Reader, path string) (*Database, error) {
	p := &datParser{path: path, db: newDatabase(catalogNameFromPath(path), ConventionChecksum)}
	p.db.Sources = []string{path}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		p.line++
		if err := p.handleLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Path: path, Line: p.line, Reason: err.Error()}
	}
	switch p.state {
	case datHeader:
		return nil, p.errorf("unexpected end of file inside header block")
	case datGame, datRom:
		return nil, p.errorf("unexpected end of file inside game %q", p.game.Name)
	}
	return p.db, nil
}

func (p *datParser) errorf(format string, args ...any) error {
	return &ParseError{Path: p.path, Line: p.line, Reason: fmt.Sprintf(format, args...)}
}

func (p *datParser) handleLine(raw string) error {
	text := strings.TrimSpace(raw)
	if p.state == datRom {
		if text == ")" {
			p.state = datGame
			start := p.line
			p.line = p.romLine
			err := p.handleGameLine("rom ( " + p.pending.String() + " )")
			p.line = start
			p.pending.Reset()
			return err
		}
		p.pending.WriteString(text)
		p.pending.WriteByte(' ')
		return nil
	}
	if text == "" || strings.HasPrefix(text, "//") || strings.HasPrefix(text, "#") {
		return nil
	}
	switch p.state {
	case datTop:
		return p.handleTopLine(text)
	case datHeader:
		return p.handleHeaderLine(text)
	default:
		return p.handleGameLine(text)
	}
}

func (p *datParser) handleTopLine(text string) error {
	tokens, err := tokenizeDAT(text)
	if err != nil {
		return p.errorf("%v", err)
	}
	if len(tokens) < 2 || tokens[1].kind != tokOpen || tokens[0].kind != tokWord {
		return p.errorf("unexpected %q outside block", text)
	}
	block := strings.ToLower(tokens[0].text)
	body, closed := blockBody(tokens[2:])
	if closed && len(tokens) > len(body)+3 {
		return p.errorf("unexpected tokens after %s block", block)
	}
	switch block {
	case "clrmamepro", "emulator", "header":
		p.state = datHeader
		p.applyHeader(body)
	case "game", "machine", "resource", "set":
		p.state = datGame
		p.game = &SoftwareRecord{}
		if len(body) > 0 {
			if err := p.applyGameTokens(body); err != nil {
				return err
			}
		}
	default:
		return p.errorf("unknown block %q", tokens[0].text)
	}
	if closed {
		return p.closeBlock()
	}
	return nil
}

func (p *datParser) closeBlock() error {
	if p.state == datGame {
		rec := p.game
		if rec.Description == "" {
			rec.Description = rec.Name
		}
		p.db.add(rec, recordKeys(rec, ConventionChecksum))
		p.game = nil
	}
	p.state = datTop
	return nil
}

func (p *datParser) handleHeaderLine(text string) error {
	if text == ")" {
		return p.closeBlock()
	}
	tokens, err := tokenizeDAT(text)
	if err != nil {
		return p.errorf("%v", err)
	}
	p.applyHeader(tokens)
	return nil
}

// applyHeader reads name and description pairs; other header fields are
// informational only.
func (p *datParser) applyHeader(tokens []datToken) {
	for i := 0; i+1 < len(tokens); i += 2 {
		value := tokens[i+1].text
		switch strings.ToLower(tokens[i].text) {
		case "name":
			if value != "" {
				p.db.Name = value
			}
		case "description":
			p.db.Description = value
		}
	}
}

func (p *datParser) handleGameLine(text string) error {
	if text == ")" {
		return p.closeBlock()
	}
	tokens, err := tokenizeDAT(text)
	if err != nil {
		return p.errorf("%v", err)
	}
	if len(tokens) == 2 && tokens[1].kind == tokOpen && strings.EqualFold(tokens[0].text, "rom") {
		p.state = datRom
		p.romLine = p.line
		return nil
	}
	// A trailing ")" closes the game on the same line as its last attribute.
	closes := false
	if n := len(tokens); n > 0 && tokens[n-1].kind == tokClose && depth(tokens) < 0 {
		tokens = tokens[:n-1]
		closes = true
	}
	if err := p.applyGameTokens(tokens); err != nil {
		return err
	}
	if closes {
		return p.closeBlock()
	}
	return nil
}

// applyGameTokens consumes attributes and nested blocks of a game.
func (p *datParser) applyGameTokens(tokens []datToken) error {
	for len(tokens) > 0 {
		if tokens[0].kind != tokWord {
			return p.errorf("unexpected %q in game block", tokens[0].text)
		}
		key := strings.ToLower(tokens[0].text)
		if len(tokens) > 1 && tokens[1].kind == tokOpen {
			body, closed := blockBody(tokens[2:])
			if !closed {
				return p.errorf("unterminated %s block", key)
			}
			if err := p.applyNested(key, body); err != nil {
				return err
			}
			tokens = tokens[2+len(body)+1:]
			continue
		}
		if len(tokens) < 2 || tokens[1].kind != tokWord && tokens[1].kind != tokString {
			return p.errorf("attribute %q has no value", key)
		}
		p.applyGameAttr(key, tokens[1].text)
		tokens = tokens[2:]
	}
	return nil
}

func (p *datParser) applyGameAttr(key, value string) {
	g := p.game
	switch key {
	case "name":
		g.Name = value
	case "description":
		g.Description = value
	case "cloneof":
		g.Parent = value
	case "serial":
		g.Serial = value
	case "year":
		g.Year = value
	case "manufacturer", "publisher", "developer":
		if g.Publisher == "" {
			g.Publisher = value
		}
	}
}

func (p *datParser) applyNested(key string, body []datToken) error {
	switch key {
	case "rom":
		seg, err := p.parseRom(body)
		if err != nil {
			return err
		}
		if seg.Serial != "" && p.game.Serial == "" {
			p.game.Serial = seg.Serial
		}
		p.game.Parts = append(p.game.Parts, SoftwarePart{
			Name: seg.Name,
			DataAreas: []DataArea{{
				Name:     "rom",
				Size:     seg.Size,
				Segments: []RomSegment{seg.RomSegment},
			}},
		})
	case "disk":
		attrs, err := p.attrs(body)
		if err != nil {
			return err
		}
		status, ok := parseStatus(firstNonEmpty(attrs["status"], attrs["flags"]))
		if !ok {
			return p.errorf("disk %q: unknown status %q", attrs["name"], attrs["status"])
		}
		sha := strings.ToLower(attrs["sha1"])
		if sha != "" && !isHexLen(sha, 40) {
			return p.errorf("disk %q: malformed sha1 %q", attrs["name"], sha)
		}
		p.game.Parts = append(p.game.Parts, SoftwarePart{
			Name: attrs["name"],
			DiskAreas: []DiskArea{{
				Name:  "disk",
				Disks: []Disk{{Name: attrs["name"], SHA1: sha, Status: status}},
			}},
		})
	}
	return nil
}

type datRomEntry struct {
	RomSegment
	Serial string
}

func (p *datParser) parseRom(body []datToken) (datRomEntry, error) {
	attrs, err := p.attrs(body)
	if err != nil {
		return datRomEntry{}, err
	}
	entry := datRomEntry{Serial: attrs["serial"]}
	entry.Name = attrs["name"]

	status, ok := parseStatus(firstNonEmpty(attrs["status"], attrs["flags"]))
	if !ok {
		return entry, p.errorf("rom %q: unknown status %q", entry.Name, attrs["status"])
	}
	entry.Status = status

	if v := attrs["size"]; v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil || size < 0 {
			return entry, p.errorf("rom %q: malformed size %q", entry.Name, v)
		}
		entry.Size = size
	}
	if v := attrs["crc"]; v != "" {
		crc, err := parseCRC(v)
		if err != nil {
			return entry, p.errorf("rom %q: malformed crc %q", entry.Name, v)
		}
		entry.CRC32 = crc
		entry.HasCRC = true
	}
	if v := strings.ToLower(attrs["sha1"]); v != "" {
		if !isHexLen(v, 40) {
			return entry, p.errorf("rom %q: malformed sha1 %q", entry.Name, v)
		}
		entry.SHA1 = v
	}
	return entry, nil
}

// attrs reads alternating key/value tokens. Unknown nested blocks are skipped.
func (p *datParser) attrs(body []datToken) (map[string]string, error) {
	out := map[string]string{}
	for i := 0; i < len(body); {
		if body[i].kind != tokWord {
			return nil, p.errorf("unexpected %q in attribute list", body[i].text)
		}
		if i+1 >= len(body) {
			return nil, p.errorf("attribute %q has no value", body[i].text)
		}
		next := body[i+1]
		if next.kind == tokOpen {
			inner, closed := blockBody(body[i+2:])
			if !closed {
				return nil, p.errorf("unterminated %s block", body[i].text)
			}
			i += 2 + len(inner) + 1
			continue
		}
		if next.kind == tokClose {
			return nil, p.errorf("attribute %q has no value", body[i].text)
		}
		key := strings.ToLower(body[i].text)
		if _, dup := out[key]; !dup {
			out[key] = next.text
		}
		i += 2
	}
	return out, nil
}

func parseCRC(v string) (uint32, error) {
	v = strings.TrimPrefix(strings.ToLower(v), "0x")
	if v == "" || len(v) > 8 {
		return 0, fmt.Errorf("crc must be 1-8 hex digits")
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func isHexLen(v string, n int) bool {
	if len(v) != n {
		return false
	}
	_, err := hex.DecodeString(v)
	return err == nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
