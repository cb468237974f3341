package perforce

import (
	"bufio"
	"fmt"
	"strings"
)

// Record is one object of "p4 -ztag" output.
type Record map[string]string

// parseTagged splits -ztag output into records. Records are separated by
// blank lines and every field reads "... name value". A line longer than the
// scanner buffer fails the whole parse rather than truncating the records.
func parseTagged(out string) ([]Record, error) {
	var (
		records []Record
		current Record
	)
	flush := func() {
		if len(current) > 0 {
			records = append(records, current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		rest, ok := strings.CutPrefix(line, "... ")
		if !ok {
			continue
		}
		// Nested fields such as "... ... otherOpen0" belong to the record
		// but are not used here.
		if strings.HasPrefix(rest, "... ") {
			continue
		}
		name, value, _ := strings.Cut(rest, " ")
		if current == nil {
			current = Record{}
		}
		current[name] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tagged output: %w", err)
	}
	flush()
	return records, nil
}
