package qemuimg

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRunner Runner 的 testify mock 实现
type MockRunner struct {
	mock.Mock
}

var _ Runner = (*MockRunner)(nil)

func (m *MockRunner) CreateFromBackingFile(ctx context.Context, format, backingFormat, backingFile, outputFile string) error {
	args := m.Called(ctx, format, backingFormat, backingFile, outputFile)
	return args.Error(0)
}

func (m *MockRunner) CreateEmpty(ctx context.Context, format, outputFile string, sizeGB uint64) error {
	args := m.Called(ctx, format, outputFile, sizeGB)
	return args.Error(0)
}

func (m *MockRunner) Resize(ctx context.Context, imagePath string, sizeGB uint64) error {
	args := m.Called(ctx, imagePath, sizeGB)
	return args.Error(0)
}

func (m *MockRunner) Info(ctx context.Context, imagePath string) (string, error) {
	args := m.Called(ctx, imagePath)
	return args.String(0), args.Error(1)
}

func (m *MockRunner) GetFormat(ctx context.Context, imagePath string) (string, error) {
	args := m.Called(ctx, imagePath)
	return args.String(0), args.Error(1)
}

func (m *MockRunner) Check(ctx context.Context, imagePath, format string) error {
	args := m.Called(ctx, imagePath, format)
	return args.Error(0)
}
