package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aihub/plugin-hello-world/internal/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `{"id":"plugin-hello-world","name":"Hello World","version":"1.0.0"}`

func TestCreateXpkg(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(testManifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hello"), 0644))
	binPath := filepath.Join(dir, "build.so")
	require.NoError(t, os.WriteFile(binPath, []byte("fake shared object"), 0644))

	output := filepath.Join(dir, "hello.xpkg")
	descriptor, err := createXpkg(output, manifestPath, binPath)
	require.NoError(t, err)

	expected, err := plugins.FileChecksum(binPath)
	require.NoError(t, err)
	assert.Equal(t, expected, descriptor.Checksum)

	// 宿主解压后能读到带校验和的 manifest
	loader := plugins.NewPluginLoader(dir, filepath.Join(dir, "extract"))
	extractDir, err := loader.ExtractXpkg(output)
	require.NoError(t, err)

	packed, err := plugins.LoadDescriptorFromManifest(filepath.Join(extractDir, "manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, "plugin-hello-world", packed.ID)
	assert.Equal(t, expected, packed.Checksum)
	assert.FileExists(t, filepath.Join(extractDir, "plugin.so"))
	assert.FileExists(t, filepath.Join(extractDir, "README.md"))
}

func TestCreateXpkgRejectsInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`{"id":"x"}`), 0644))
	binPath := filepath.Join(dir, "plugin.so")
	require.NoError(t, os.WriteFile(binPath, []byte("so"), 0644))

	output := filepath.Join(dir, "bad.xpkg")
	_, err := createXpkg(output, manifestPath, binPath)
	require.Error(t, err)
	assert.NoFileExists(t, output)
}
