package engine

import (
	"github.com/stretchr/testify/mock"

	"github.com/jmylchreest/toastd/internal/model"
)

// mockSurfaces is a testify mock of SurfaceProvider for failure paths.
type mockSurfaces struct {
	mock.Mock
}

func (_m *mockSurfaces) CreateSurface(id, contentRef string, width, height int) error {
	ret := _m.Called(id, contentRef, width, height)
	return ret.Error(0)
}

func (_m *mockSurfaces) Show(id string) error {
	return _m.Called(id).Error(0)
}

func (_m *mockSurfaces) Hide(id string) error {
	return _m.Called(id).Error(0)
}

func (_m *mockSurfaces) Focus(id string) error {
	return _m.Called(id).Error(0)
}

func (_m *mockSurfaces) Close(id string) error {
	return _m.Called(id).Error(0)
}

func (_m *mockSurfaces) SetPosition(id string, x, y int) error {
	return _m.Called(id, x, y).Error(0)
}

func (_m *mockSurfaces) MeasuredSize(id string) (int, int, error) {
	ret := _m.Called(id)
	return ret.Int(0), ret.Int(1), ret.Error(2)
}

func (_m *mockSurfaces) SendPayload(id string, n model.Notification) error {
	return _m.Called(id, n).Error(0)
}
