package catalog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type xmlSoftwareList struct {
	Name        string        `xml:"name,attr"`
	Description string        `xml:"description,attr"`
	Software    []xmlSoftware `xml:"software"`
}

type xmlSoftware struct {
	Name        string    `xml:"name,attr"`
	CloneOf     string    `xml:"cloneof,attr"`
	Description string    `xml:"description"`
	Year        string    `xml:"year"`
	Publisher   string    `xml:"publisher"`
	Info        []xmlInfo `xml:"info"`
	Parts       []xmlPart `xml:"part"`
}

type xmlInfo struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlPart struct {
	Name      string        `xml:"name,attr"`
	Interface string        `xml:"interface,attr"`
	DataAreas []xmlDataArea `xml:"dataarea"`
	DiskAreas []xmlDiskArea `xml:"diskarea"`
}

type xmlDataArea struct {
	Name string   `xml:"name,attr"`
	Size string   `xml:"size,attr"`
	Roms []xmlRom `xml:"rom"`
}

type xmlRom struct {
	Name   string `xml:"name,attr"`
	Size   string `xml:"size,attr"`
	CRC    string `xml:"crc,attr"`
	SHA1   string `xml:"sha1,attr"`
	Offset string `xml:"offset,attr"`
	Status string `xml:"status,attr"`
}

type xmlDiskArea struct {
	Name  string    `xml:"name,attr"`
	Disks []xmlDisk `xml:"disk"`
}

type xmlDisk struct {
	Name   string `xml:"name,attr"`
	SHA1   string `xml:"sha1,attr"`
	Status string `xml:"status,attr"`
}

// Logiqx XML datafiles carry the same game/rom model as line DATs.
type xmlDatafile struct {
	Header struct {
		Name        string `xml:"name"`
		Description string `xml:"description"`
	} `xml:"header"`
	Games []xmlGame `xml:"game"`
}

type xmlGame struct {
	Name        string    `xml:"name,attr"`
	CloneOf     string    `xml:"cloneof,attr"`
	Description string    `xml:"description"`
	Year        string    `xml:"year"`
	Publisher   string    `xml:"manufacturer"`
	Serial      string    `xml:"serial"`
	Roms        []xmlRom  `xml:"rom"`
	Disks       []xmlDisk `xml:"disk"`
}

// ParseSoftwareList reads an XML catalog. Software lists
// (<softwarelist>) are keyed by software name; Logiqx datafiles
// (<datafile>) are treated like line DATs and keyed by checksum.
func ParseSoftwareList(r io.Reader, path string) (*Database, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &ParseError{Path: path, Reason: "no root element"}
			}
			return nil, xmlParseError(path, dec, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "softwarelist":
			var list xmlSoftwareList
			if err := dec.DecodeElement(&list, &start); err != nil {
				return nil, xmlParseError(path, dec, err)
			}
			return buildSoftwareList(path, list)
		case "datafile":
			var file xmlDatafile
			if err := dec.DecodeElement(&file, &start); err != nil {
				return nil, xmlParseError(path, dec, err)
			}
			return buildDatafile(path, file)
		default:
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("unknown root element <%s>", start.Name.Local)}
		}
	}
}

func xmlParseError(path string, dec *xml.Decoder, err error) error {
	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		return &ParseError{Path: path, Line: syntax.Line, Reason: syntax.Msg}
	}
	line, _ := dec.InputPos()
	return &ParseError{Path: path, Line: line, Reason: err.Error()}
}

func buildSoftwareList(path string, list xmlSoftwareList) (*Database, error) {
	name := list.Name
	if name == "" {
		name = catalogNameFromPath(path)
	}
	db := newDatabase(name, ConventionName)
	db.Description = list.Description
	db.Sources = []string{path}

	for _, sw := range list.Software {
		rec := &SoftwareRecord{
			Name:        sw.Name,
			Description: strings.TrimSpace(sw.Description),
			Parent:      sw.CloneOf,
			Year:        sw.Year,
			Publisher:   sw.Publisher,
		}
		for _, info := range sw.Info {
			if info.Name == "serial" && rec.Serial == "" {
				rec.Serial = info.Value
			}
		}
		for _, xp := range sw.Parts {
			part := SoftwarePart{Name: xp.Name, Interface: xp.Interface}
			for _, xa := range xp.DataAreas {
				area := DataArea{Name: xa.Name}
				if xa.Size != "" {
					size, err := parseXMLSize(xa.Size)
					if err != nil {
						return nil, &ParseError{Path: path, Reason: fmt.Sprintf("software %q dataarea %q: malformed size %q", sw.Name, xa.Name, xa.Size)}
					}
					area.Size = size
				}
				for _, xr := range xa.Roms {
					// Nameless roms are load directives (continue, fill,
					// ignore) that describe layout rather than dump content.
					if xr.Name == "" {
						continue
					}
					seg, err := buildXMLRom(xr)
					if err != nil {
						return nil, &ParseError{Path: path, Reason: fmt.Sprintf("software %q rom %q: %v", sw.Name, xr.Name, err)}
					}
					area.Segments = append(area.Segments, seg)
				}
				part.DataAreas = append(part.DataAreas, area)
			}
			for _, xa := range xp.DiskAreas {
				area := DiskArea{Name: xa.Name}
				for _, xd := range xa.Disks {
					disk, err := buildXMLDisk(xd)
					if err != nil {
						return nil, &ParseError{Path: path, Reason: fmt.Sprintf("software %q disk %q: %v", sw.Name, xd.Name, err)}
					}
					area.Disks = append(area.Disks, disk)
				}
				part.DiskAreas = append(part.DiskAreas, area)
			}
			rec.Parts = append(rec.Parts, part)
		}
		db.add(rec, recordKeys(rec, ConventionName))
	}
	return db, nil
}

func buildDatafile(path string, file xmlDatafile) (*Database, error) {
	name := strings.TrimSpace(file.Header.Name)
	if name == "" {
		name = catalogNameFromPath(path)
	}
	db := newDatabase(name, ConventionChecksum)
	db.Description = file.Header.Description
	db.Sources = []string{path}

	for _, game := range file.Games {
		rec := &SoftwareRecord{
			Name:        game.Name,
			Description: strings.TrimSpace(game.Description),
			Parent:      game.CloneOf,
			Serial:      game.Serial,
			Year:        game.Year,
			Publisher:   game.Publisher,
		}
		if rec.Description == "" {
			rec.Description = rec.Name
		}
		for _, xr := range game.Roms {
			seg, err := buildXMLRom(xr)
			if err != nil {
				return nil, &ParseError{Path: path, Reason: fmt.Sprintf("game %q rom %q: %v", game.Name, xr.Name, err)}
			}
			rec.Parts = append(rec.Parts, SoftwarePart{
				Name:      xr.Name,
				DataAreas: []DataArea{{Name: "rom", Size: seg.Size, Segments: []RomSegment{seg}}},
			})
		}
		for _, xd := range game.Disks {
			disk, err := buildXMLDisk(xd)
			if err != nil {
				return nil, &ParseError{Path: path, Reason: fmt.Sprintf("game %q disk %q: %v", game.Name, xd.Name, err)}
			}
			rec.Parts = append(rec.Parts, SoftwarePart{
				Name:      xd.Name,
				DiskAreas: []DiskArea{{Name: "disk", Disks: []Disk{disk}}},
			})
		}
		db.add(rec, recordKeys(rec, ConventionChecksum))
	}
	return db, nil
}

func buildXMLRom(xr xmlRom) (RomSegment, error) {
	seg := RomSegment{Name: xr.Name}
	status, ok := parseStatus(xr.Status)
	if !ok {
		return seg, fmt.Errorf("unknown status %q", xr.Status)
	}
	seg.Status = status
	if xr.Size != "" {
		size, err := parseXMLSize(xr.Size)
		if err != nil {
			return seg, fmt.Errorf("malformed size %q", xr.Size)
		}
		seg.Size = size
	}
	if xr.Offset != "" {
		off, err := strconv.ParseInt(strings.TrimPrefix(strings.ToLower(xr.Offset), "0x"), 16, 64)
		if err != nil || off < 0 {
			return seg, fmt.Errorf("malformed offset %q", xr.Offset)
		}
		seg.Offset = off
	}
	if xr.CRC != "" {
		crc, err := parseCRC(xr.CRC)
		if err != nil {
			return seg, fmt.Errorf("malformed crc %q", xr.CRC)
		}
		seg.CRC32 = crc
		seg.HasCRC = true
	}
	if xr.SHA1 != "" {
		sha := strings.ToLower(xr.SHA1)
		if !isHexLen(sha, 40) {
			return seg, fmt.Errorf("malformed sha1 %q", xr.SHA1)
		}
		seg.SHA1 = sha
	}
	return seg, nil
}

func buildXMLDisk(xd xmlDisk) (Disk, error) {
	status, ok := parseStatus(xd.Status)
	if !ok {
		return Disk{}, fmt.Errorf("unknown status %q", xd.Status)
	}
	sha := strings.ToLower(xd.SHA1)
	if sha != "" && !isHexLen(sha, 40) {
		return Disk{}, fmt.Errorf("malformed sha1 %q", xd.SHA1)
	}
	return Disk{Name: xd.Name, SHA1: sha, Status: status}, nil
}

// parseXMLSize accepts decimal sizes and 0x-prefixed hex sizes.
func parseXMLSize(v string) (int64, error) {
	v = strings.TrimSpace(v)
	var (
		n   int64
		err error
	)
	if rest, ok := strings.CutPrefix(strings.ToLower(v), "0x"); ok {
		n, err = strconv.ParseInt(rest, 16, 64)
	} else {
		n, err = strconv.ParseInt(v, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size")
	}
	return n, nil
}
