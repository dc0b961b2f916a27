package daemonconf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rogpeppe/go-internal/lockedfile"
)

// FieldName is the only key the patcher rewrites.
const FieldName = "server_names"

// backupLayout is appended to the config path to name a backup.
const backupLayout = "20060102-150405"

// RenderField renders the server_names line for values. Values are written
// verbatim and in order.
func RenderField(values []string) string {
	var b strings.Builder
	b.WriteString(FieldName)
	b.WriteString(" = [")
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(v)
		b.WriteByte('"')
	}
	b.WriteByte(']')
	return b.String()
}

// Detect returns the first candidate that exists as a regular file.
func Detect(candidates []string) (string, error) {
	for _, path := range candidates {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNotFound, strings.Join(candidates, ", "))
}

// WriteField replaces the first server_names line of the file at path with
// the rendered values, or appends one when the file has none. The file must
// already exist. The rewrite holds an exclusive lock on the file.
func WriteField(path string, values []string) error {
	if _, err := os.Stat(path); err != nil {
		return &IOError{Path: path, Op: "stat", Err: err}
	}

	line := RenderField(values)
	err := lockedfile.Transform(path, func(old []byte) ([]byte, error) {
		return patchContent(old, line), nil
	})
	if err != nil {
		return &IOError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// patchContent swaps the first field line of content for line.
func patchContent(content []byte, line string) []byte {
	var out bytes.Buffer
	out.Grow(len(content) + len(line) + 1)

	replaced := false
	for rest := content; len(rest) > 0; {
		cur := rest
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			cur, rest = rest[:i+1], rest[i+1:]
		} else {
			rest = nil
		}

		body, eol := splitEOL(cur)
		if !replaced && strings.HasPrefix(strings.TrimSpace(string(body)), FieldName) {
			out.WriteString(line)
			out.Write(eol)
			replaced = true
			continue
		}
		out.Write(cur)
	}

	if !replaced {
		if len(content) > 0 && content[len(content)-1] != '\n' {
			out.WriteByte('\n')
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

func splitEOL(line []byte) (body, eol []byte) {
	switch {
	case bytes.HasSuffix(line, []byte("\r\n")):
		return line[:len(line)-2], line[len(line)-2:]
	case bytes.HasSuffix(line, []byte("\n")):
		return line[:len(line)-1], line[len(line)-1:]
	default:
		return line, nil
	}
}

// maxBackupSuffix bounds the numbered names tried when backups collide.
const maxBackupSuffix = 100

// Backup copies the file at path to <path>.bak.<timestamp> and returns the
// backup's path. The copy keeps the original permissions. An existing backup
// is never replaced: when the name is taken, ".1", ".2" and so on are
// appended.
func Backup(path string, clock Clock) (string, error) {
	if clock == nil {
		clock = RealClock{}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", &IOError{Path: path, Op: "stat", Err: err}
	}
	content, err := lockedfile.Read(path)
	if err != nil {
		return "", &IOError{Path: path, Op: "read", Err: err}
	}

	base := path + ".bak." + clock.Now().Format(backupLayout)
	f, backupPath, err := createExclusive(base, info.Mode().Perm())
	if err != nil {
		return "", &IOError{Path: base, Op: "backup", Err: err}
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(backupPath)
		return "", &IOError{Path: backupPath, Op: "backup", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(backupPath)
		return "", &IOError{Path: backupPath, Op: "backup", Err: err}
	}
	return backupPath, nil
}

// createExclusive creates base, or the first free base.N, with O_EXCL.
func createExclusive(base string, perm os.FileMode) (*os.File, string, error) {
	name := base
	for i := 1; ; i++ {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) || i > maxBackupSuffix {
			return nil, "", err
		}
		name = fmt.Sprintf("%s.%d", base, i)
	}
}

// Apply backs up the file at path and then rewrites its server_names field.
// The backup path is returned even when the write fails.
func Apply(ctx context.Context, path string, values []string, clock Clock) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	backupPath, err := Backup(path, clock)
	if err != nil {
		return "", err
	}
	if err := WriteField(path, values); err != nil {
		return backupPath, err
	}
	return backupPath, nil
}

// Validate checks that path exists and mentions the server_names field. It
// does not parse the rest of the file.
func Validate(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ValidationError{Path: path, Reason: ReasonMissing}
		}
		return &IOError{Path: path, Op: "read", Err: err}
	}
	if !bytes.Contains(content, []byte(FieldName)) {
		return &ValidationError{Path: path, Reason: ReasonNoField}
	}
	return nil
}
