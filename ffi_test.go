package vex

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLibraryNameCandidates_PerHost(t *testing.T) {
	candidates := libraryNameCandidates("m")
	assert.Contains(t, candidates, "m")
	switch runtime.GOOS {
	case "darwin":
		assert.Contains(t, candidates, "libm.dylib")
	case "windows":
		assert.Equal(t, []string{"m.dll", "libm.dll", "m"}, candidates)
	default:
		assert.Equal(t, []string{"libm.so", "m.so", "m"}, candidates)
	}
}

func TestFFIBridge_LoadUnknownLibraryFails(t *testing.T) {
	b := NewFFIBridge(nil)
	_, err := b.Load("this-library-does-not-exist-anywhere")
	assert.Error(t, err)
}

func TestFFIBridge_CallI64RejectsUnsupportedArity(t *testing.T) {
	b := NewFFIBridge(nil)
	_, err := b.CallI64(0, "whatever", 1, 2, 3, 4)
	assert.Error(t, err)
}

func TestFFIBridge_CallF64RejectsZeroArity(t *testing.T) {
	b := NewFFIBridge(nil)
	_, err := b.CallF64(0, "whatever")
	assert.Error(t, err)
}

func TestFFIBridge_CallVoidRejectsTooManyArgs(t *testing.T) {
	b := NewFFIBridge(nil)
	err := b.CallVoid(0, "whatever", 1, 2)
	assert.Error(t, err)
}
