package service

import (
	"compress/flate"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mholt/archiver"
)

// ExtensionZIP is the extension of the archives created by ArchiveDir
const ExtensionZIP = "zip"

// ArchiveDir zips the content of srcDir (the files and the sub-directories, not srcDir itself) into dst.
// dst is overwritten if it exists.
func ArchiveDir(srcDir, dst string) error {
	files, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("ArchiveDir: %w", err)
	}
	sources := make([]string, 0, len(files))
	for _, f := range files {
		sources = append(sources, filepath.Join(srcDir, f.Name()))
	}
	if len(sources) == 0 {
		return fmt.Errorf("ArchiveDir: %s is empty", srcDir)
	}

	zipper := archiver.NewZip()
	zipper.CompressionLevel = flate.BestSpeed // Products are already compressed
	zipper.OverwriteExisting = true
	zipper.MkdirAll = true
	if err := zipper.Archive(sources, dst); err != nil {
		os.Remove(dst)
		return fmt.Errorf("ArchiveDir.Archive: %w", err)
	}
	return nil
}

// UnarchiveDir extracts the zip file into dstDir
func UnarchiveDir(zipFile, dstDir string) error {
	zip := archiver.Zip{OverwriteExisting: true, MkdirAll: true}
	if err := zip.Unarchive(zipFile, dstDir); err != nil {
		return fmt.Errorf("UnarchiveDir: %w", err)
	}
	return nil
}
