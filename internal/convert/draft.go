package convert

import (
	"strconv"
	"strings"

	"patchbridge/internal/errors"
)

// Ref stands for the depot identity of a working-tree path until it is
// resolved.
type Ref struct {
	Path         string
	WithRevision bool
}

// Part is either literal text or a Ref.
type Part struct {
	Text string
	Ref  *Ref
}

func text(s string) Part {
	return Part{Text: s}
}

func depot(path string) Part {
	return Part{Ref: &Ref{Path: path}}
}

func depotRev(path string) Part {
	return Part{Ref: &Ref{Path: path, WithRevision: true}}
}

// Line is one output line under construction.
type Line []Part

func (l Line) String() string {
	var b strings.Builder
	for _, p := range l {
		if p.Ref == nil {
			b.WriteString(p.Text)
			continue
		}
		b.WriteString("[!!")
		b.WriteString(p.Ref.Path)
		if p.Ref.WithRevision {
			b.WriteString("#0")
		}
		b.WriteString("!!]")
	}
	return b.String()
}

// DepotEntry is where a working-tree path lives in the depot.
type DepotEntry struct {
	DepotPath string
	Rev       int
}

// DepotMapping resolves Refs. It only lives for one conversion.
type DepotMapping map[string]DepotEntry

// Draft is converted output whose depot identities are still pending.
type Draft struct {
	Lines []Line
}

func (d *Draft) add(parts ...Part) {
	d.Lines = append(d.Lines, Line(parts))
}

// String renders unresolved references as [!!path!!] and [!!path#0!!].
func (d *Draft) String() string {
	var b strings.Builder
	for _, l := range d.Lines {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Render substitutes every reference from m. A reference m cannot resolve
// fails the whole draft.
func (d *Draft) Render(m DepotMapping) (string, error) {
	var b strings.Builder
	for _, l := range d.Lines {
		for _, p := range l {
			if p.Ref == nil {
				b.WriteString(p.Text)
				continue
			}
			entry, ok := m[p.Ref.Path]
			if !ok {
				return "", errors.UnresolvedIdentity(p.Ref.Path, l.String())
			}
			b.WriteString(entry.DepotPath)
			if p.Ref.WithRevision {
				b.WriteByte('#')
				b.WriteString(strconv.Itoa(entry.Rev))
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
