// Package gitdiff tokenizes and inspects unified diffs produced by git.
package gitdiff

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// DevNull is the path git uses for the missing side of an add or delete.
const DevNull = "/dev/null"

type Kind int

const (
	Body Kind = iota
	DiffCommand
	Index
	OldMode
	NewMode
	NewFileMode
	DeletedFileMode
	Similarity
	RenameFrom
	RenameTo
	CopyFrom
	CopyTo
	OldFile
	NewFile
	HunkHeader
	Binary
)

var kindNames = [...]string{"Body", "DiffCommand", "Index", "OldMode", "NewMode",
	"NewFileMode", "DeletedFileMode", "Similarity", "RenameFrom", "RenameTo",
	"CopyFrom", "CopyTo", "OldFile", "NewFile", "HunkHeader", "Binary"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Token is one classified line of a unified diff.
type Token struct {
	Kind Kind
	Line string
	// Path is set for OldFile, NewFile and the rename/copy tokens, with the
	// a/ or b/ prefix removed. It is DevNull for the missing side.
	Path string
	// Percent is set for Similarity.
	Percent int
	// Old and New carry the line counts of a HunkHeader.
	OldLines int
	NewLines int
}

// IsNull reports whether the token points at the null device.
func (t Token) IsNull() bool {
	return t.Path == DevNull
}

var (
	hunkHeaderPattern  = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)
	similarityPattern  = regexp.MustCompile(`^similarity index (\d+)%$`)
	indexPattern       = regexp.MustCompile(`^index [0-9a-f]+\.\.[0-9a-f]+`)
	simplePrefixTokens = []struct {
		prefix string
		kind   Kind
	}{
		{"diff --git ", DiffCommand},
		{"old mode ", OldMode},
		{"new mode ", NewMode},
		{"new file mode ", NewFileMode},
		{"deleted file mode ", DeletedFileMode},
		{"Binary files ", Binary},
		{"GIT binary patch", Binary},
	}
	pathPrefixTokens = []struct {
		prefix string
		kind   Kind
	}{
		{"rename from ", RenameFrom},
		{"rename to ", RenameTo},
		{"copy from ", CopyFrom},
		{"copy to ", CopyTo},
	}
)

// Lex classifies a single line.
func Lex(line string) Token {
	tok := Token{Kind: Body, Line: line}

	switch {
	case strings.HasPrefix(line, "--- "):
		tok.Kind = OldFile
		tok.Path = filePath(line[4:], "a/")
		return tok
	case strings.HasPrefix(line, "+++ "):
		tok.Kind = NewFile
		tok.Path = filePath(line[4:], "b/")
		return tok
	case strings.HasPrefix(line, "@@ "):
		if m := hunkHeaderPattern.FindStringSubmatch(line); m != nil {
			tok.Kind = HunkHeader
			tok.OldLines = rangeCount(m[1])
			tok.NewLines = rangeCount(m[2])
		}
		return tok
	case indexPattern.MatchString(line):
		tok.Kind = Index
		return tok
	}

	if m := similarityPattern.FindStringSubmatch(line); m != nil {
		tok.Kind = Similarity
		tok.Percent, _ = strconv.Atoi(m[1])
		return tok
	}
	for _, p := range pathPrefixTokens {
		if strings.HasPrefix(line, p.prefix) {
			tok.Kind = p.kind
			tok.Path = strings.TrimPrefix(line, p.prefix)
			return tok
		}
	}
	for _, p := range simplePrefixTokens {
		if strings.HasPrefix(line, p.prefix) {
			tok.Kind = p.kind
			return tok
		}
	}
	return tok
}

// Lexer classifies lines in order, treating the lines counted by the last
// hunk header as body so that a removed "-- x" line is never read as a
// file header.
type Lexer struct {
	oldLeft int
	newLeft int
}

// Next classifies the next line of the diff.
func (l *Lexer) Next(line string) Token {
	if l.oldLeft > 0 || l.newLeft > 0 {
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
		return Token{Kind: Body, Line: line}
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
	err := ScanLines(r, func(line string) {
		tokens = append(tokens, lexer.Next(line))
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// ScanLines calls fn for every line of r without its terminator.
func ScanLines(r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	return scanner.Err()
}

// filePath strips an optional tab-separated timestamp and the side prefix.
func filePath(raw, prefix string) string {
	if i := strings.IndexByte(raw, '\t'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimRight(raw, " ")
	if raw == DevNull {
		return DevNull
	}
	return strings.TrimPrefix(raw, prefix)
}

func rangeCount(s string) int {
	if s == "" {
		return 1
	}
	n, _ := strconv.Atoi(s)
	return n
}
