package identification

import (
	"strings"

	"romident/internal/catalog"
)

// matchRecord reports whether any part of rec satisfies q.
func matchRecord(rec *catalog.SoftwareRecord, q MatchQuery, preferSHA1 bool) (bool, error) {
	for _, part := range rec.Parts {
		ok, err := matchPart(part, q, preferSHA1)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// matchPart applies the rule for the part's shape: one segment compares
// checksums, several segments verify total size and every segment's CRC32,
// and disk-only parts compare the image SHA1.
func matchPart(part catalog.SoftwarePart, q MatchQuery, preferSHA1 bool) (bool, error) {
	layout := layoutSegments(part.DataAreas)
	switch {
	case len(layout) == 1:
		return matchSegment(layout[0].RomSegment, q, preferSHA1), nil
	case len(layout) > 1:
		return matchSegments(layout, q)
	case len(part.DataAreas) == 0 && len(part.DiskAreas) > 0:
		return matchDisks(part.DiskAreas, q), nil
	default:
		return false, nil
	}
}

type placedSegment struct {
	catalog.RomSegment
	start int64
}

// layoutSegments places each segment at its offset within the concatenation
// of the part's data areas. An area occupies its declared size, or the sum of
// its segment sizes when no size is declared.
func layoutSegments(areas []catalog.DataArea) []placedSegment {
	var (
		out  []placedSegment
		base int64
	)
	for _, area := range areas {
		var sum int64
		for _, seg := range area.Segments {
			out = append(out, placedSegment{RomSegment: seg, start: base + seg.Offset})
			sum += seg.Size
		}
		if area.Size > 0 {
			base += area.Size
		} else {
			base += sum
		}
	}
	return out
}

func matchSegment(seg catalog.RomSegment, q MatchQuery, preferSHA1 bool) bool {
	if !seg.Usable() {
		return false
	}
	shaComparable := seg.SHA1 != "" && q.SHA1 != ""
	crcComparable := seg.HasCRC && q.HasCRC
	switch {
	case shaComparable && (preferSHA1 || !crcComparable):
		return seg.SHA1 == q.SHA1
	case crcComparable:
		return seg.CRC32 == q.CRC32
	default:
		return false
	}
}

// matchSegments requires the declared sizes to add up to the image size and
// every segment's CRC32 to match the bytes at its position. One mismatch
// fails the part.
func matchSegments(layout []placedSegment, q MatchQuery) (bool, error) {
	if !q.HasSize || q.Reader == nil {
		return false, nil
	}
	var total int64
	for _, seg := range layout {
		if !seg.Usable() || !seg.HasCRC {
			return false, nil
		}
		total += seg.Size
	}
	if total != q.Size {
		return false, nil
	}
	for _, seg := range layout {
		crc, err := q.RangeCRC(seg.start, seg.Size)
		if err != nil {
			return false, err
		}
		if crc != seg.CRC32 {
			return false, nil
		}
	}
	return true, nil
}

func matchDisks(areas []catalog.DiskArea, q MatchQuery) bool {
	if q.SHA1 == "" {
		return false
	}
	for _, area := range areas {
		for _, disk := range area.Disks {
			if disk.Status == catalog.StatusNoDump || disk.SHA1 == "" {
				continue
			}
			if strings.EqualFold(disk.SHA1, q.SHA1) {
				return true
			}
		}
	}
	return false
}
