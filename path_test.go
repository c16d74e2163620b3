package sga

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath(t *testing.T) {
	t.Parallel()

	a := New[struct{}, struct{}]("test", struct{}{})
	d := a.NewDrive("data", "Data")
	unit := d.NewFolder("unit")
	icon := unit.NewFile("icon.png", []byte{1}, StorageStore, struct{}{})

	t.Run("drive", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "data:", d.Path())
	})

	t.Run("folder", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "data:/unit", unit.Path())
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "data:/unit/icon.png", icon.Path())
	})

	t.Run("nested folder", func(t *testing.T) {
		t.Parallel()
		deep := unit.NewFolder("textures").NewFolder("hi-res")
		assert.Equal(t, "data:/unit/textures/hi-res", deep.Path())
	})

	t.Run("file directly under drive", func(t *testing.T) {
		t.Parallel()
		f := d.NewFile("readme.txt", []byte{1}, StorageStore, struct{}{})
		assert.Equal(t, "data:/readme.txt", f.Path())
	})

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, icon.Path(), icon.Path())
	})
}

func TestPortablePath(t *testing.T) {
	t.Parallel()

	a := New[struct{}, struct{}]("test", struct{}{})
	d := a.NewDrive("data", "Data")
	f := d.NewFolder("unit").NewFile("icon.png", []byte{1}, StorageStore, struct{}{})

	assert.Equal(t, "data", d.PortablePath())
	assert.Equal(t, "data/unit/icon.png", f.PortablePath())
}
