// Package filechange holds the VCS-neutral record of a single file-level
// change and the closed taxonomy used to classify it.
package filechange

import (
	"fmt"

	"patchbridge/internal/errors"
)

// Type classifies a FileChange. The zero value is not a valid type.
type Type int

const (
	Added Type = iota + 1
	Modified
	Integrate
	AddedAndModified
	Deleted
	Renamed
	RenamedAndModified
	DeletedAfterRename
	Copied
)

type typeInfo struct {
	name       string
	statusCode string // git status letters, empty when git has no equivalent
	keyword    string // p4 action, empty when p4 has no equivalent
	template   string
}

var types = map[Type]typeInfo{
	Added:              {"added", "A", "add", "added file %s"},
	Modified:           {"modified", "M", "edit", "modified file %s"},
	Integrate:          {"integrate", "", "integrate", "integrated file %s"},
	AddedAndModified:   {"addedAndModified", "AM", "", "added and modified file %s"},
	Deleted:            {"deleted", "D", "delete", "deleted file %s"},
	Renamed:            {"renamed", "R", "move/add", "renamed file %s to %s"},
	RenamedAndModified: {"renamedAndModified", "RM", "", "renamed and modified file %s to %s"},
	DeletedAfterRename: {"deletedAfterRename", "", "move/delete", "deleted file %s after rename"},
	Copied:             {"copied", "C", "branch", "copied file %s to %s"},
}

// Types lists every variant in declaration order.
func Types() []Type {
	return []Type{Added, Modified, Integrate, AddedAndModified, Deleted,
		Renamed, RenamedAndModified, DeletedAfterRename, Copied}
}

func (t Type) String() string {
	if info, ok := types[t]; ok {
		return info.name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// StatusCode is the git status letter code, or "" for changelist-only types.
func (t Type) StatusCode() string {
	return types[t].statusCode
}

// ActionKeyword is the p4 action, or "" for git-only types.
func (t Type) ActionKeyword() string {
	return types[t].keyword
}

// Arity is the number of paths a change of this type names.
func (t Type) Arity() int {
	switch t {
	case Renamed, RenamedAndModified, Copied:
		return 2
	default:
		return 1
	}
}

// Describe fills the description template with the affected paths.
func (t Type) Describe(paths ...string) string {
	args := make([]any, 0, len(paths))
	for _, p := range paths {
		args = append(args, p)
	}
	return fmt.Sprintf(types[t].template, args...)
}

// FromStatusCode maps a git status code such as "M" or "RM" to a Type.
func FromStatusCode(code string) (Type, error) {
	for _, t := range Types() {
		if code != "" && types[t].statusCode == code {
			return t, nil
		}
	}
	return 0, errors.NoMatchingType("status code", code)
}

// keywordAliases are p4 actions that share another action's variant.
var keywordAliases = map[string]Type{
	"import": Added,
}

// FromActionKeyword maps a p4 action such as "edit" or "move/add" to a Type.
func FromActionKeyword(keyword string) (Type, error) {
	if t, ok := keywordAliases[keyword]; ok {
		return t, nil
	}
	for _, t := range Types() {
		if keyword != "" && types[t].keyword == keyword {
			return t, nil
		}
	}
	return 0, errors.NoMatchingType("action keyword", keyword)
}
