package identification

import (
	"regexp"
	"strconv"
	"strings"

	"romident/internal/catalog"
	"romident/internal/textutil"
)

// tagPattern matches one parenthesised or bracketed disambiguation tag.
var tagPattern = regexp.MustCompile(`\(([^()]*)\)|\[([^\[\]]*)\]`)

// flagDef classifies a tag as a release-status flag. Each entry is a word
// pattern matched against a single comma-separated tag element.
type flagDef struct {
	flag    string
	pattern string
}

const (
	flagDemo    = "demo"
	flagProto   = "proto"
	flagReprint = "reprint"
)

var flagDefs = []flagDef{
	{flagDemo, `demo|kiosk|trial version`},
	// Prototype-equivalent tags gate each other: a beta query may match a
	// proto entry, but never a retail one.
	{flagProto, `proto|prototype|beta\s*\d*|alpha|sample|preview|pre-release`},
	{flagReprint, `reprint|re-print|rerelease|re-release`},
}

var flagPatterns []struct {
	flag    string
	pattern *regexp.Regexp
}

var (
	versionPattern  = regexp.MustCompile(`^(?:v|version\s*)(\d+(?:\.\d+)*)[a-z]?$`)
	revisionPattern = regexp.MustCompile(`^rev(?:ision)?\.?\s*([0-9a-z]+)$`)
)

// regionAliases maps region spellings to one canonical name. Single letters
// follow the GoodTools convention and may be combined, as in "(JUE)".
var regionAliases = map[string]string{
	"usa": "usa", "us": "usa", "u": "usa", "america": "usa",
	"europe": "europe", "eu": "europe", "e": "europe",
	"japan": "japan", "jp": "japan", "j": "japan",
	"world": "world", "w": "world",
	"asia": "asia", "australia": "australia", "brazil": "brazil",
	"canada": "canada", "china": "china", "france": "france",
	"germany": "germany", "hong kong": "hong kong", "italy": "italy",
	"korea": "korea", "netherlands": "netherlands", "russia": "russia",
	"scandinavia": "scandinavia", "spain": "spain", "sweden": "sweden",
	"taiwan": "taiwan", "uk": "uk", "united kingdom": "uk",
}

// Version tags preferred when several candidates survive region narrowing.
var (
	plainVersions   = map[string]bool{"v1.0": true, "rev 0": true}
	reprintVersions = map[string]bool{"v1.1": true, "rev 1": true}
)

func init() {
	for _, def := range flagDefs {
		flagPatterns = append(flagPatterns, struct {
			flag    string
			pattern *regexp.Regexp
		}{def.flag, regexp.MustCompile(`(?i)\b(` + def.pattern + `)\b`)})
	}
}

// nameInfo is a title split into its comparison base and classified tags.
type nameInfo struct {
	base    string
	regions map[string]bool
	version string
	demo    bool
	proto   bool
	reprint bool
}

func parseName(name string) nameInfo {
	info := nameInfo{regions: map[string]bool{}}
	for _, m := range tagPattern.FindAllStringSubmatch(name, -1) {
		tag := m[1]
		if tag == "" {
			tag = m[2]
		}
		for _, element := range strings.Split(tag, ",") {
			info.classify(strings.ToLower(strings.TrimSpace(element)))
		}
	}
	info.base = normalizeTitle(tagPattern.ReplaceAllString(name, " "))
	return info
}

func (n *nameInfo) classify(element string) {
	if element == "" {
		return
	}
	if region, ok := regionAliases[element]; ok {
		n.regions[region] = true
		return
	}
	if isRegionLetters(element) {
		for _, r := range element {
			n.regions[regionAliases[string(r)]] = true
		}
		return
	}
	if m := versionPattern.FindStringSubmatch(element); m != nil {
		n.version = "v" + normalizeVersionNumber(m[1])
		return
	}
	if m := revisionPattern.FindStringSubmatch(element); m != nil {
		n.version = "rev " + m[1]
		return
	}
	for _, fp := range flagPatterns {
		if !fp.pattern.MatchString(element) {
			continue
		}
		switch fp.flag {
		case flagDemo:
			n.demo = true
		case flagProto:
			n.proto = true
		case flagReprint:
			n.reprint = true
		}
	}
}

func isRegionLetters(element string) bool {
	if len(element) < 2 || len(element) > 4 {
		return false
	}
	for _, r := range element {
		if !strings.ContainsRune("juew", r) {
			return false
		}
	}
	return true
}

// normalizeVersionNumber collapses all-zero components after the first, so
// "1.00" and "1.0" compare equal.
func normalizeVersionNumber(v string) string {
	parts := strings.Split(v, ".")
	for i := 1; i < len(parts); i++ {
		if n, err := strconv.Atoi(parts[i]); err == nil && n == 0 {
			parts[i] = "0"
		}
	}
	if len(parts) == 1 {
		parts = append(parts, "0")
	}
	return strings.Join(parts, ".")
}

// wantsRevisionOne reports whether the query is a reprint or names the
// first revision explicitly.
func (n nameInfo) wantsRevisionOne() bool {
	return n.reprint || reprintVersions[n.version]
}

// subtitleReplacer unifies the separators and conjunctions titles are
// written with across catalogs.
var subtitleReplacer = strings.NewReplacer(
	" - ", " ",
	": ", " ",
	" ~ ", " ",
	" & ", " and ",
	"'", "",
	"\u2019", "",
)

var trailingArticles = []string{", the", ", a", ", an"}

// normalizeTitle folds a tag-free title into its comparison form.
func normalizeTitle(title string) string {
	folded := textutil.Fold(strings.TrimSpace(title))
	folded = subtitleReplacer.Replace(folded)
	for _, article := range trailingArticles {
		if idx := strings.Index(folded, article); idx > 0 {
			rest := folded[idx+len(article):]
			if rest == "" || rest[0] == ' ' {
				folded = strings.TrimPrefix(article, ", ") + " " + folded[:idx] + rest
				break
			}
		}
	}
	return textutil.CollapseSpace(folded)
}

// fuzzyOutcome reports why the fuzzy phase stopped for one catalog.
type fuzzyOutcome struct {
	record     *catalog.SoftwareRecord
	candidates int
	reason     string
}

// fuzzyMatch narrows db's records to the single one whose title agrees with
// query. Narrowing order is fixed: base name with demo and prototype gates,
// then region overlap, then version preference.
func fuzzyMatch(query nameInfo, db *catalog.Database) fuzzyOutcome {
	var candidates []*catalog.SoftwareRecord
	for _, rec := range db.Records() {
		info := parseName(rec.Title())
		if info.base != query.base || info.demo != query.demo || info.proto != query.proto {
			continue
		}
		candidates = append(candidates, rec)
	}
	if out, done := settle(candidates, "no_candidates"); done {
		return out
	}

	if len(query.regions) > 0 {
		candidates = filterRecords(candidates, func(info nameInfo) bool {
			for region := range info.regions {
				if query.regions[region] {
					return true
				}
			}
			return false
		})
		if out, done := settle(candidates, "region_mismatch"); done {
			return out
		}
	}

	var keep func(nameInfo) bool
	switch {
	case query.wantsRevisionOne():
		keep = func(info nameInfo) bool { return reprintVersions[info.version] }
	case query.version != "":
		keep = func(info nameInfo) bool { return info.version == query.version }
	default:
		keep = func(info nameInfo) bool { return plainVersions[info.version] }
	}
	narrowed := filterRecords(candidates, keep)
	if len(narrowed) == 1 {
		return fuzzyOutcome{record: narrowed[0], candidates: 1, reason: "version"}
	}
	return fuzzyOutcome{candidates: len(candidates), reason: "ambiguous"}
}

func settle(candidates []*catalog.SoftwareRecord, emptyReason string) (fuzzyOutcome, bool) {
	switch len(candidates) {
	case 0:
		return fuzzyOutcome{reason: emptyReason}, true
	case 1:
		return fuzzyOutcome{record: candidates[0], candidates: 1, reason: "unique"}, true
	default:
		return fuzzyOutcome{}, false
	}
}

func filterRecords(records []*catalog.SoftwareRecord, keep func(nameInfo) bool) []*catalog.SoftwareRecord {
	var out []*catalog.SoftwareRecord
	for _, rec := range records {
		if keep(parseName(rec.Title())) {
			out = append(out, rec)
		}
	}
	return out
}
