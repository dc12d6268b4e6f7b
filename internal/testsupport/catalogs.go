package testsupport

import (
	"fmt"
	"strings"
)

// DATRom renders a single-line rom entry for a line-dialect catalog.
func DATRom(name string, size int, crc uint32) string {
	return fmt.Sprintf("\trom ( name %q size %d crc %08X )", name, size, crc)
}

// DATGame renders a game block with the given description and body lines.
func DATGame(name string, lines ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "game (\n\tname %q\n\tdescription %q\n", name, name)
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(")\n")
	return b.String()
}

// DAT renders a complete line-dialect catalog with a clrmamepro header.
func DAT(name string, games ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "clrmamepro (\n\tname %q\n\tdescription %q\n)\n\n", name, name)
	for _, game := range games {
		b.WriteString(game)
		b.WriteByte('\n')
	}
	return b.String()
}
