package catalog

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokOpen
	tokClose
)

type datToken struct {
	kind tokenKind
	text string
}

// tokenizeDAT splits one logical DAT line into words, quoted strings and
// parentheses. Quoted strings have no escape sequences.
func tokenizeDAT(line string) ([]datToken, error) {
	var tokens []datToken
	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, datToken{kind: tokOpen, text: "("})
			i++
		case c == ')':
			tokens = append(tokens, datToken{kind: tokClose, text: ")"})
			i++
		case c == '"':
			end := strings.IndexByte(line[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quoted string at column %d", i+1)
			}
			tokens = append(tokens, datToken{kind: tokString, text: line[i+1 : i+1+end]})
			i += end + 2
		default:
			start := i
			for i < len(line) && !strings.ContainsRune(" \t\r()\"", rune(line[i])) {
				i++
			}
			tokens = append(tokens, datToken{kind: tokWord, text: line[start:i]})
		}
	}
	return tokens, nil
}

// blockBody returns the tokens up to the ")" matching an already consumed
// "(". closed is false when the line ends first; body is then every token.
func blockBody(tokens []datToken) ([]datToken, bool) {
	level := 1
	for i, tok := range tokens {
		switch tok.kind {
		case tokOpen:
			level++
		case tokClose:
			level--
			if level == 0 {
				return tokens[:i], true
			}
		}
	}
	return tokens, false
}

// depth is the net parenthesis balance of tokens.
func depth(tokens []datToken) int {
	n := 0
	for _, tok := range tokens {
		switch tok.kind {
		case tokOpen:
			n++
		case tokClose:
			n--
		}
	}
	return n
}
