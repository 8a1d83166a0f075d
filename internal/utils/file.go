package utils

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileHash calculates the SHA-256 hash of a file
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// SameContent reports whether two files have equal length and equal SHA-256 digests.
func SameContent(a, b string) (bool, error) {
	infoA, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if infoA.Size() != infoB.Size() {
		return false, nil
	}

	hashA, err := FileHash(a)
	if err != nil {
		return false, err
	}
	hashB, err := FileHash(b)
	if err != nil {
		return false, err
	}
	return hashA == hashB, nil
}

// CopyFile copies a file from src to dst, creating parent directories and truncating dst.
func CopyFile(src, dst string) error {
	return copyFile(src, dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

// CopyFileExclusive copies a file from src to dst and fails with fs.ErrExist if dst exists.
func CopyFileExclusive(src, dst string) error {
	return copyFile(src, dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL)
}

func copyFile(src, dst string, flag int) error {
	if err := EnsureParent(dst); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, flag, info.Mode().Perm())
	if err != nil {
		return err
	}
	// an existing dst keeps its old mode otherwise
	if err := dstFile.Chmod(info.Mode().Perm()); err != nil {
		dstFile.Close()
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}

// ReplaceFile atomically replaces dst with the contents of src.
// The copy is staged next to dst so the final rename never crosses filesystems.
func ReplaceFile(src, dst string) error {
	if err := EnsureParent(dst); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".replace-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := CopyFile(src, tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// CopyDir recursively copies the tree rooted at src into dst, overwriting existing files.
func CopyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return CopyFile(path, target)
	})
}

// ReadLines returns the non-empty lines of a line-delimited list file.
// A missing file is an empty list.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// WriteLines writes one entry per line, replacing any existing file.
func WriteLines(path string, lines []string) error {
	if err := EnsureParent(path); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// DirSize sums the sizes of the regular files under dir.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
