package catalog

import (
	"slices"
	"strings"
)

// Convention is how a catalog keys its records when sources are merged.
type Convention string

const (
	// ConventionChecksum keys records by ROM CRC32, falling back to serial
	// for records that declare no usable checksum. Used by DAT catalogs.
	ConventionChecksum Convention = "checksum"
	// ConventionName keys records by software name. Used by software lists.
	ConventionName Convention = "name"
)

type entry struct {
	record *SoftwareRecord
	keys   []string
}

// Database is an ordered set of software records with lookup indexes. A
// Database is not modified once returned by a parser or Merge.
type Database struct {
	Name        string
	Description string
	Convention  Convention
	// Sources lists the catalog files merged into this database, in load order.
	Sources []string

	entries  []entry
	byKey    map[string]*SoftwareRecord
	byCRC    map[uint32]*SoftwareRecord
	bySHA1   map[string]*SoftwareRecord
	bySerial map[string]*SoftwareRecord
	byName   map[string]*SoftwareRecord
}

func newDatabase(name string, convention Convention) *Database {
	return &Database{
		Name:       name,
		Convention: convention,
		byKey:      map[string]*SoftwareRecord{},
		byCRC:      map[uint32]*SoftwareRecord{},
		bySHA1:     map[string]*SoftwareRecord{},
		bySerial:   map[string]*SoftwareRecord{},
		byName:     map[string]*SoftwareRecord{},
	}
}

// recordKeys returns the merge identity of rec under convention. Checksum
// catalogs identify a record by its full set of usable CRCs, then by its SHA1
// set, then by serial, so distinct games sharing one track stay distinct.
// Individual segment checksums are indexed separately by index.
func recordKeys(rec *SoftwareRecord, convention Convention) []string {
	if convention == ConventionName {
		if rec.Name == "" {
			return nil
		}
		return []string{"name:" + rec.Name}
	}
	var crcs, sha1s []string
	for _, seg := range rec.segments() {
		if seg.HasCRC {
			crcs = append(crcs, seg.CRCHex())
		}
		if seg.SHA1 != "" {
			sha1s = append(sha1s, seg.SHA1)
		}
	}
	for _, disk := range rec.disks() {
		sha1s = append(sha1s, disk.SHA1)
	}
	switch {
	case len(crcs) > 0:
		return []string{"crc:" + identitySet(crcs)}
	case len(sha1s) > 0:
		return []string{"sha1:" + identitySet(sha1s)}
	case rec.Serial != "":
		return []string{"serial:" + normalizeSerial(rec.Serial)}
	}
	return nil
}

func identitySet(values []string) string {
	slices.Sort(values)
	return strings.Join(slices.Compact(values), ",")
}

func normalizeSerial(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}

// add inserts rec, or merges it into the record already holding its identity.
// Existing field values always win.
func (d *Database) add(rec *SoftwareRecord, keys []string) {
	for _, key := range keys {
		if existing, ok := d.byKey[key]; ok {
			existing.mergeFrom(rec)
			for _, k := range keys {
				if _, taken := d.byKey[k]; !taken {
					d.byKey[k] = existing
				}
			}
			d.index(existing)
			return
		}
	}
	d.entries = append(d.entries, entry{record: rec, keys: keys})
	for _, key := range keys {
		d.byKey[key] = rec
	}
	d.index(rec)
}

func (d *Database) index(rec *SoftwareRecord) {
	for _, seg := range rec.segments() {
		if seg.HasCRC {
			if _, ok := d.byCRC[seg.CRC32]; !ok {
				d.byCRC[seg.CRC32] = rec
			}
		}
		if seg.SHA1 != "" {
			if _, ok := d.bySHA1[seg.SHA1]; !ok {
				d.bySHA1[seg.SHA1] = rec
			}
		}
	}
	for _, disk := range rec.disks() {
		if _, ok := d.bySHA1[disk.SHA1]; !ok {
			d.bySHA1[disk.SHA1] = rec
		}
	}
	if rec.Serial != "" {
		if _, ok := d.bySerial[normalizeSerial(rec.Serial)]; !ok {
			d.bySerial[normalizeSerial(rec.Serial)] = rec
		}
	}
	if rec.Name != "" {
		if _, ok := d.byName[rec.Name]; !ok {
			d.byName[rec.Name] = rec
		}
	}
}

// Records returns the records in stored order.
func (d *Database) Records() []*SoftwareRecord {
	if d == nil {
		return nil
	}
	out := make([]*SoftwareRecord, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.record
	}
	return out
}

// Len returns the number of records.
func (d *Database) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// LookupCRC returns the first record declaring a usable segment with crc.
func (d *Database) LookupCRC(crc uint32) (*SoftwareRecord, bool) {
	if d == nil {
		return nil, false
	}
	rec, ok := d.byCRC[crc]
	return rec, ok
}

// LookupSHA1 returns the first record declaring sha1 on a segment or disk.
func (d *Database) LookupSHA1(sha1 string) (*SoftwareRecord, bool) {
	if d == nil {
		return nil, false
	}
	rec, ok := d.bySHA1[strings.ToLower(strings.TrimSpace(sha1))]
	return rec, ok
}

// LookupSerial returns the record carrying serial, compared case-insensitively.
func (d *Database) LookupSerial(serial string) (*SoftwareRecord, bool) {
	if d == nil {
		return nil, false
	}
	rec, ok := d.bySerial[normalizeSerial(serial)]
	return rec, ok
}

// LookupName returns the record with the exact software name.
func (d *Database) LookupName(name string) (*SoftwareRecord, bool) {
	if d == nil {
		return nil, false
	}
	rec, ok := d.byName[name]
	return rec, ok
}

// Stats summarises a database's contents.
type Stats struct {
	Records  int
	Parts    int
	Segments int
	Disks    int
	// Unusable counts segments that cannot serve as match keys.
	Unusable int
}

// Stats counts the records, parts, segments and disks in d.
func (d *Database) Stats() Stats {
	var s Stats
	for _, rec := range d.Records() {
		s.Records++
		for _, part := range rec.Parts {
			s.Parts++
			for _, area := range part.DataAreas {
				for _, seg := range area.Segments {
					s.Segments++
					if !seg.Usable() {
						s.Unusable++
					}
				}
			}
			for _, area := range part.DiskAreas {
				s.Disks += len(area.Disks)
			}
		}
	}
	return s
}

// Merge combines databases in order. When two sources define the same key the
// record from the earlier source keeps its values; the later one only fills
// fields that were empty. Sources are not modified.
func Merge(name string, dbs ...*Database) *Database {
	convention := ConventionChecksum
	for _, db := range dbs {
		if db != nil {
			convention = db.Convention
			break
		}
	}
	merged := newDatabase(name, convention)
	for _, db := range dbs {
		if db == nil {
			continue
		}
		if merged.Description == "" {
			merged.Description = db.Description
		}
		merged.Sources = append(merged.Sources, db.Sources...)
		for _, e := range db.entries {
			clone := *e.record
			clone.Parts = append([]SoftwarePart(nil), e.record.Parts...)
			merged.add(&clone, e.keys)
		}
	}
	return merged
}
