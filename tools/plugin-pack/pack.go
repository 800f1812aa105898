package main

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aihub/plugin-hello-world/internal/plugins"
)

// 随包附带的可选文件，位于 manifest 同目录
var optionalFiles = []string{
	"README.md",
	"LICENSE",
}

// createXpkg 校验 manifest，写入 plugin.so 的校验和后打包
func createXpkg(outputPath, manifestPath, pluginBin string) (*plugins.PluginDescriptor, error) {
	manifest, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	descriptor, err := plugins.ParseDescriptor(manifest)
	manifest.Close()
	if err != nil {
		return nil, err
	}

	checksum, err := plugins.FileChecksum(pluginBin)
	if err != nil {
		return nil, err
	}
	descriptor.Checksum = checksum

	manifestData, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return nil, err
	}

	zipFile, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	if err := addBytesToZip(zipWriter, "manifest.json", manifestData); err != nil {
		return nil, err
	}
	if err := addFileToZip(zipWriter, pluginBin, "plugin.so"); err != nil {
		return nil, fmt.Errorf("failed to add plugin binary: %w", err)
	}

	baseDir := filepath.Dir(manifestPath)
	for _, name := range optionalFiles {
		path := filepath.Join(baseDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := addFileToZip(zipWriter, path, name); err != nil {
			return nil, fmt.Errorf("failed to add file %s: %w", name, err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, err
	}
	return descriptor, nil
}

func addBytesToZip(zipWriter *zip.Writer, name string, data []byte) error {
	writer, err := zipWriter.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = writer.Write(data)
	return err
}

func addFileToZip(zipWriter *zip.Writer, filePath, name string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, file)
	return err
}
