package diff

import "bytes"

type edit struct {
	typ       LineType
	text      string
	noNewline bool
	oldIdx    int // lines of old consumed before this edit
	newIdx    int // lines of new consumed before this edit
}

// splitLines keeps terminators so that a missing final newline is a
// difference in its own right.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	parts := bytes.SplitAfter(content, []byte{'\n'})
	if len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	lines := make([]string, len(parts))
	for i, p := range parts {
		lines[i] = string(p)
	}
	return lines
}

func makeEdit(typ LineType, raw string, oldIdx, newIdx int) edit {
	e := edit{typ: typ, oldIdx: oldIdx, newIdx: newIdx}
	if n := len(raw); n > 0 && raw[n-1] == '\n' {
		e.text = raw[:n-1]
	} else {
		e.text = raw
		e.noNewline = true
	}
	return e
}

// editScript walks a longest-common-subsequence table to turn oldLines
// into newLines. Shared prefix and suffix are peeled off first so the
// table only covers the changed middle.
func editScript(oldLines, newLines []string) []edit {
	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	ops := make([]edit, 0, len(oldLines)+len(newLines))
	for k := 0; k < prefix; k++ {
		ops = append(ops, makeEdit(Context, oldLines[k], k, k))
	}

	a := oldLines[prefix : len(oldLines)-suffix]
	b := newLines[prefix : len(newLines)-suffix]
	lcs := buildLCSMatrix(a, b)

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			ops = append(ops, makeEdit(Context, a[i], prefix+i, prefix+j))
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, makeEdit(Deletion, a[i], prefix+i, prefix+j))
			i++
		default:
			ops = append(ops, makeEdit(Addition, b[j], prefix+i, prefix+j))
			j++
		}
	}
	for ; i < len(a); i++ {
		ops = append(ops, makeEdit(Deletion, a[i], prefix+i, prefix+j))
	}
	for ; j < len(b); j++ {
		ops = append(ops, makeEdit(Addition, b[j], prefix+i, prefix+j))
	}

	for k := 0; k < suffix; k++ {
		oi, ni := len(oldLines)-suffix+k, len(newLines)-suffix+k
		ops = append(ops, makeEdit(Context, oldLines[oi], oi, ni))
	}
	return ops
}

// buildLCSMatrix holds at [i][j] the LCS length of a[i:] and b[j:].
func buildLCSMatrix(a, b []string) [][]int {
	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}

	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				matrix[i][j] = matrix[i+1][j+1] + 1
			} else {
				matrix[i][j] = max(matrix[i+1][j], matrix[i][j+1])
			}
		}
	}

	return matrix
}
