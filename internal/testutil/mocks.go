package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/contdb/queryview/internal/container"
	"github.com/contdb/queryview/internal/ref"
)

// MockContainer is a testify mock.Mock-based mock of container.Container,
// mirroring the teacher's MockPostgresStore in shape: one method per
// interface method, m.Called(...) forwarding, nil-safe type assertions on
// the returned value.
type MockContainer struct {
	mock.Mock
}

var _ container.Container = (*MockContainer)(nil)

func (m *MockContainer) CanonicalFilename(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockContainer) VisitObjects(ctx context.Context, rcxt container.ReadContext, root string, fn container.Visitor) error {
	args := m.Called(ctx, rcxt, root, fn)
	return args.Error(0)
}

func (m *MockContainer) OpenObject(ctx context.Context, rcxt container.ReadContext, path string) (container.ObjectHandle, error) {
	args := m.Called(ctx, rcxt, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(container.ObjectHandle), args.Error(1)
}

func (m *MockContainer) CloseObject(ctx context.Context, h container.ObjectHandle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockContainer) IterateAttributes(ctx context.Context, rcxt container.ReadContext, path string) ([]container.AttrInfo, error) {
	args := m.Called(ctx, rcxt, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]container.AttrInfo), args.Error(1)
}

func (m *MockContainer) OpenAttribute(ctx context.Context, rcxt container.ReadContext, path, name string) (container.AttributeHandle, error) {
	args := m.Called(ctx, rcxt, path, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(container.AttributeHandle), args.Error(1)
}

func (m *MockContainer) ReadAttribute(ctx context.Context, h container.AttributeHandle) (container.TypeTag, [][]byte, error) {
	args := m.Called(ctx, h)
	return args.Get(0).(container.TypeTag), args.Get(1).([][]byte), args.Error(2)
}

func (m *MockContainer) CloseAttribute(ctx context.Context, h container.AttributeHandle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockContainer) SelectDatasetRegion(ctx context.Context, rcxt container.ReadContext, path string, match container.ElementPredicate) (*ref.RegionSelection, error) {
	args := m.Called(ctx, rcxt, path, match)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ref.RegionSelection), args.Error(1)
}

func (m *MockContainer) CreateCoreBackedContainer(ctx context.Context, name string) (container.Container, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(container.Container), args.Error(1)
}

func (m *MockContainer) CreateAnonymousGroup(ctx context.Context) (container.Group, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(container.Group), args.Error(1)
}

func (m *MockContainer) WriteDataset(ctx context.Context, parent container.Group, name string, rows [][]byte) error {
	args := m.Called(ctx, parent, name, rows)
	return args.Error(0)
}

// MockGroup is a testify mock.Mock-based mock of container.Group.
type MockGroup struct {
	mock.Mock
}

var _ container.Group = (*MockGroup)(nil)

func (m *MockGroup) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockGroup) Close() error {
	args := m.Called()
	return args.Error(0)
}
