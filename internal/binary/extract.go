package binary

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Extractor handles archive extraction
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks a .zip or .tar.gz archive into destDir.
func (e *Extractor) Extract(archivePath, destDir string) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return e.ExtractZip(archivePath, destDir)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return e.ExtractTarGz(archivePath, destDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedArchive, filepath.Base(archivePath))
	}
}

// safeJoin joins name onto destDir and rejects results outside destDir.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	return target, nil
}

// ExtractTarGz extracts a .tar.gz archive to a destination directory
func (e *Extractor) ExtractTarGz(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		// Insecure names are rejected below with the same error as zip.
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}
		if err := checkNoSymlinks(destDir, target); err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := writeFile(target, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := checkLinkTarget(destDir, target, header.Linkname); err != nil {
				return fmt.Errorf("illegal symlink %s -> %s: %w", header.Name, header.Linkname, err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}

		default:
			continue
		}
	}

	return nil
}

// checkNoSymlinks rejects target when any existing component between
// destDir and target, target included, is a symbolic link.
func checkNoSymlinks(destDir, target string) error {
	rel, err := filepath.Rel(destDir, target)
	if err != nil {
		return fmt.Errorf("illegal file path: %s", target)
	}

	current := filepath.Clean(destDir)
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		current = filepath.Join(current, part)
		fi, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", current, err)
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("illegal file path: %s passes through symlink %s", rel, part)
		}
	}
	return nil
}

// checkLinkTarget resolves linkname from the directory holding link one
// component at a time. The walk must stay inside destDir and may not
// step through another symlink.
func checkLinkTarget(destDir, link, linkname string) error {
	if filepath.IsAbs(linkname) {
		return errors.New("absolute target")
	}

	root := filepath.Clean(destDir)
	dir, err := filepath.Rel(root, filepath.Dir(link))
	if err != nil {
		return err
	}

	var stack []string
	if dir != "." {
		stack = strings.Split(dir, string(os.PathSeparator))
	}
	for _, part := range strings.Split(filepath.ToSlash(linkname), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) == 0 {
				return errors.New("target leaves the extraction directory")
			}
			stack = stack[:len(stack)-1]
			continue
		}

		stack = append(stack, part)
		fi, err := os.Lstat(filepath.Join(append([]string{root}, stack...)...))
		if err == nil && fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("target passes through symlink %s", part)
		}
	}
	return nil
}

// ExtractZip extracts a .zip archive to a destination directory
func (e *Extractor) ExtractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for _, f := range reader.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}
		if err := checkNoSymlinks(destDir, target); err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		mode := f.Mode().Perm()
		if mode == 0 {
			mode = 0644
		}
		err = writeFile(target, rc, mode)
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}

	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}
	return nil
}

// FindBinary searches root for the daemon executable. A file named exactly
// like the executable for goos wins; otherwise the first regular file, in
// lexical path order, whose name starts with "dnscrypt-proxy" is returned.
func FindBinary(root, goos string) (string, error) {
	exact := executableName(goos)
	var exactMatch string
	var prefixMatches []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if name == exact && exactMatch == "" {
			exactMatch = path
			return nil
		}
		if strings.HasPrefix(name, BinaryName) {
			prefixMatches = append(prefixMatches, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s: %w", root, err)
	}

	if exactMatch != "" {
		return exactMatch, nil
	}
	if len(prefixMatches) > 0 {
		sort.Strings(prefixMatches)
		return prefixMatches[0], nil
	}
	return "", ErrBinaryNotFound
}

// SetExecutable sets executable permissions on a file. It is a no-op on
// Windows.
func SetExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return nil
}
