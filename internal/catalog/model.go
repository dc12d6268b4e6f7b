package catalog

import (
	"fmt"
	"strings"
)

// Status is the dump status of a ROM segment or disk.
type Status string

const (
	StatusGood    Status = "good"
	StatusBadDump Status = "baddump"
	StatusNoDump  Status = "nodump"
)

func parseStatus(value string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "good", "verified":
		return StatusGood, true
	case "baddump":
		return StatusBadDump, true
	case "nodump":
		return StatusNoDump, true
	default:
		return "", false
	}
}

// RomSegment is one declared region of a data area.
type RomSegment struct {
	Name   string
	Offset int64
	Size   int64
	CRC32  uint32
	HasCRC bool
	// SHA1 is lowercase hex, empty when not declared.
	SHA1   string
	Status Status
}

// Usable reports whether the segment can serve as a match key: it must be
// dumped and declare at least one checksum.
func (s RomSegment) Usable() bool {
	return s.Status != StatusNoDump && (s.HasCRC || s.SHA1 != "")
}

// CRCHex returns the declared CRC32 as eight lowercase hex digits, or "".
func (s RomSegment) CRCHex() string {
	if !s.HasCRC {
		return ""
	}
	return fmt.Sprintf("%08x", s.CRC32)
}

// DataArea is a named byte region made of one or more segments.
type DataArea struct {
	Name     string
	Size     int64
	Segments []RomSegment
}

// Disk is one optical disc identified by the SHA1 of its image.
type Disk struct {
	Name   string
	SHA1   string
	Status Status
}

// DiskArea groups the disks of a part.
type DiskArea struct {
	Name  string
	Disks []Disk
}

// SoftwarePart is one physical component of a software release.
type SoftwarePart struct {
	Name      string
	Interface string
	DataAreas []DataArea
	DiskAreas []DiskArea
}

// SoftwareRecord is a cataloged piece of software.
type SoftwareRecord struct {
	Name        string
	Description string
	// Parent is the name of the record this one is a clone of, if any.
	Parent    string
	Serial    string
	Year      string
	Publisher string
	Parts     []SoftwarePart
}

// Title returns the description, falling back to the name.
func (r *SoftwareRecord) Title() string {
	if r.Description != "" {
		return r.Description
	}
	return r.Name
}

// segments yields every usable ROM segment across all parts.
func (r *SoftwareRecord) segments() []RomSegment {
	var out []RomSegment
	for _, part := range r.Parts {
		for _, area := range part.DataAreas {
			for _, seg := range area.Segments {
				if seg.Usable() {
					out = append(out, seg)
				}
			}
		}
	}
	return out
}

func (r *SoftwareRecord) disks() []Disk {
	var out []Disk
	for _, part := range r.Parts {
		for _, area := range part.DiskAreas {
			for _, disk := range area.Disks {
				if disk.Status != StatusNoDump && disk.SHA1 != "" {
					out = append(out, disk)
				}
			}
		}
	}
	return out
}

// mergeFrom fills fields still empty on r from other. Values already present
// are never overwritten; parts are taken from other only when r has none.
func (r *SoftwareRecord) mergeFrom(other *SoftwareRecord) {
	if r.Name == "" {
		r.Name = other.Name
	}
	if r.Description == "" {
		r.Description = other.Description
	}
	if r.Parent == "" {
		r.Parent = other.Parent
	}
	if r.Serial == "" {
		r.Serial = other.Serial
	}
	if r.Year == "" {
		r.Year = other.Year
	}
	if r.Publisher == "" {
		r.Publisher = other.Publisher
	}
	if len(r.Parts) == 0 {
		r.Parts = append(r.Parts, other.Parts...)
	}
}
