// Package testutil provides testify mocks for the collaborators the
// converters and the changelist creator query. testify's Called is safe for
// concurrent use, so the mocks can back the parallel diff fan-out.
package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"patchbridge/internal/filechange"
	"patchbridge/internal/perforce"
)

// MockPerforce mocks the p4 queries of perforce.Client.
type MockPerforce struct {
	mock.Mock
}

func (m *MockPerforce) FileInfo(ctx context.Context, paths []string) (map[string]perforce.FileRevision, error) {
	args := m.Called(ctx, paths)
	info, _ := args.Get(0).(map[string]perforce.FileRevision)
	return info, args.Error(1)
}

func (m *MockPerforce) Where(ctx context.Context, paths []string) (map[string]string, error) {
	args := m.Called(ctx, paths)
	where, _ := args.Get(0).(map[string]string)
	return where, args.Error(1)
}

func (m *MockPerforce) OpenedChanges(ctx context.Context, changelist string) ([]filechange.FileChange, error) {
	args := m.Called(ctx, changelist)
	changes, _ := args.Get(0).([]filechange.FileChange)
	return changes, args.Error(1)
}

func (m *MockPerforce) Diff(ctx context.Context, paths []string, binary bool) (string, error) {
	args := m.Called(ctx, paths, binary)
	return args.String(0), args.Error(1)
}

// Print mocks Print. Tests write dest through Run when the content matters.
func (m *MockPerforce) Print(ctx context.Context, fileSpec, dest string) error {
	args := m.Called(ctx, fileSpec, dest)
	return args.Error(0)
}

// MockHasher mocks an object hasher.
type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) HashObject(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

// MockDiffer mocks a file differ.
type MockDiffer struct {
	mock.Mock
}

func (m *MockDiffer) DiffFiles(ctx context.Context, oldPath, newPath string) (string, error) {
	args := m.Called(ctx, oldPath, newPath)
	return args.String(0), args.Error(1)
}
