// test/mock/audit.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/veritas-grc/veritas/api/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Record(ctx context.Context, candidate audit.Candidate) (*audit.Entry, error) {
	args := m.Called(ctx, candidate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Entry), args.Error(1)
}

func (m *MockAuditService) List(ctx context.Context, f audit.Filter, page, perPage int) (*audit.Page, error) {
	args := m.Called(ctx, f, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Page), args.Error(1)
}

func (m *MockAuditService) Get(ctx context.Context, sequence uint64) (*audit.Entry, error) {
	args := m.Called(ctx, sequence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Entry), args.Error(1)
}

func (m *MockAuditService) Verify(ctx context.Context) (*audit.Verification, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Verification), args.Error(1)
}

func (m *MockAuditService) VerifyRange(ctx context.Context, from, to uint64) (*audit.Verification, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Verification), args.Error(1)
}

func (m *MockAuditService) Stats(ctx context.Context, windowDays int) (*audit.Stats, error) {
	args := m.Called(ctx, windowDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Stats), args.Error(1)
}

func (m *MockAuditService) Export(ctx context.Context, req audit.ExportRequest) (*audit.ExportRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.ExportRecord), args.Error(1)
}
