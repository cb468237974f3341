// Package p4diff tokenizes the diff and describe output of the p4 client,
// and the review-style diffs this module produces for it.
package p4diff

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"patchbridge/internal/gitdiff"
)

type Kind int

const (
	Body Kind = iota
	// Header is a "==== //depot/p#3 ... ====" line from describe or diff.
	Header
	// Move is a "==== //depot/a#3 ==MV== //depot/b ====" line.
	Move
	Before
	After
	MovedFrom
	MovedTo
	HunkHeader
)

// NoRevision marks a Before token whose revision was not spelled out.
const NoRevision = -1

type Token struct {
	Kind Kind
	Line string
	// Path is the depot path, or the local path of an After line.
	Path string
	Rev  int
	// To is the destination of a Move.
	To string
	// FileType is the "(text)" annotation of a describe header.
	FileType string
	OldLines int
	NewLines int
	// InHunk marks Body lines counted by the preceding hunk header, and a
	// "\ No newline at end of file" marker right after them.
	InHunk bool
}

var (
	movePattern   = regexp.MustCompile(`^==== (//[^#]+)#(\d+) ==MV== (//.+?) ====$`)
	headerPattern = regexp.MustCompile(`^==== (//[^#]+)#(\d+)(?: \(([^)]*)\))?(?: - .*)? ====`)
	// --- //depot/p#3[\t...]   or   --- //depot/p\t//depot/p#3
	beforeRevPattern  = regexp.MustCompile(`^--- (//[^#\t]+)#(\d+)(?:\t.*)?$`)
	beforePairPattern = regexp.MustCompile(`^--- (//[^\t]+)\t(//[^#\t]+)#(\d+)`)
	beforePlain       = regexp.MustCompile(`^--- ([^\t]+)(?:\t.*)?$`)
	afterPattern      = regexp.MustCompile(`^\+\+\+ ([^\t]+)(?:\t.*)?$`)
)

// Lex classifies one line outside of a hunk body.
func Lex(line string) Token {
	tok := Token{Kind: Body, Line: line, Rev: NoRevision}

	if m := movePattern.FindStringSubmatch(line); m != nil {
		tok.Kind, tok.Path, tok.Rev, tok.To = Move, m[1], atoi(m[2]), m[3]
		return tok
	}
	if m := headerPattern.FindStringSubmatch(line); m != nil {
		tok.Kind, tok.Path, tok.Rev, tok.FileType = Header, m[1], atoi(m[2]), m[3]
		return tok
	}
	if m := beforeRevPattern.FindStringSubmatch(line); m != nil {
		tok.Kind, tok.Path, tok.Rev = Before, m[1], atoi(m[2])
		return tok
	}
	if m := beforePairPattern.FindStringSubmatch(line); m != nil {
		tok.Kind, tok.Path, tok.Rev = Before, m[2], atoi(m[3])
		return tok
	}
	if m := beforePlain.FindStringSubmatch(line); m != nil {
		tok.Kind, tok.Path = Before, strings.TrimRight(m[1], " ")
		return tok
	}
	if m := afterPattern.FindStringSubmatch(line); m != nil {
		tok.Kind, tok.Path = After, strings.TrimRight(m[1], " ")
		return tok
	}
	if rest, ok := strings.CutPrefix(line, "Moved from: "); ok {
		tok.Kind, tok.Path = MovedFrom, rest
		return tok
	}
	if rest, ok := strings.CutPrefix(line, "Moved to: "); ok {
		tok.Kind, tok.Path = MovedTo, rest
		return tok
	}
	if g := gitdiff.Lex(line); g.Kind == gitdiff.HunkHeader {
		tok.Kind, tok.OldLines, tok.NewLines = HunkHeader, g.OldLines, g.NewLines
	}
	return tok
}

// Lexer classifies lines in order, keeping hunk bodies opaque.
type Lexer struct {
	oldLeft  int
	newLeft  int
	prevHunk bool
}

func (l *Lexer) Next(line string) Token {
	if l.prevHunk && l.oldLeft == 0 && l.newLeft == 0 && strings.HasPrefix(line, `\`) {
		l.prevHunk = false
		return Token{Kind: Body, Line: line, Rev: NoRevision, InHunk: true}
	}
	l.prevHunk = false
	if l.oldLeft > 0 || l.newLeft > 0 {
		l.prevHunk = true
		switch {
		case strings.HasPrefix(line, "+"):
			l.newLeft--
		case strings.HasPrefix(line, "-"):
			l.oldLeft--
		case strings.HasPrefix(line, `\`):
		default:
			l.oldLeft--
			l.newLeft--
		}
		return Token{Kind: Body, Line: line, Rev: NoRevision, InHunk: true}
	}
	tok := Lex(line)
	if tok.Kind == HunkHeader {
		l.oldLeft, l.newLeft = tok.OldLines, tok.NewLines
	}
	return tok
}

// Tokens reads r to the end and lexes every line.
func Tokens(r io.Reader) ([]Token, error) {
	var (
		tokens []Token
		lexer  Lexer
	)
	err := gitdiff.ScanLines(r, func(line string) {
		tokens = append(tokens, lexer.Next(line))
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// RelativePath drops the first depth "/"-separated elements of a depot
// path, so that depth 4 turns //depot/proj/src/a.go into src/a.go.
func RelativePath(depotPath string, depth int) (string, bool) {
	parts := strings.Split(depotPath, "/")
	if len(parts) <= depth {
		return "", false
	}
	return strings.Join(parts[depth:], "/"), true
}

// IsDepotPath reports whether p uses depot syntax.
func IsDepotPath(p string) bool {
	return strings.HasPrefix(p, "//")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
