package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"
)

// Router moves processed files into their terminal folders. Fully processed
// files land timestamped in the managed folder; files with failing rows
// additionally leave a copy and a report in the novelties folder; files
// that produced nothing land in the errors folder with a paired log.
type Router struct {
	managed   string
	novelties string
	errors    string
	logger    logger.Logger
	now       func() time.Time
}

// NewRouter creates a router over the three terminal folders
func NewRouter(managed, novelties, errorsDir string, log logger.Logger) *Router {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Router{
		managed:   managed,
		novelties: novelties,
		errors:    errorsDir,
		logger:    log.WithComponent("file_router"),
		now:       time.Now,
	}
}

func (r *Router) stamp() string {
	return r.now().Format("20060102_150405")
}

// Archive moves a fully processed file into the managed folder under a
// timestamped name and returns the new path
func (r *Router) Archive(path string) (string, error) {
	dest := filepath.Join(r.managed, stampedName(path, "", r.stamp()))
	if err := moveFile(path, dest); err != nil {
		return "", errors.FileError(errors.CodeFilePermission, path, err)
	}

	r.logger.WithFields(logger.Fields{"file": filepath.Base(path), "archived": dest}).Info("File archived")
	return dest, nil
}

// Novelties leaves a copy of the file and a human-readable report in the
// novelties folder. A non-nil content replaces the verbatim copy, letting
// line-oriented channels retain only the failing rows. The original stays in
// place; the caller archives it.
func (r *Router) Novelties(path string, content []byte, report string) (copyPath, reportPath string, err error) {
	stamp := r.stamp()
	copyPath = filepath.Join(r.novelties, stampedName(path, "_NOVEDADES", stamp))
	// The report name never collides with the copy, even for .txt inputs.
	reportPath = strings.TrimSuffix(copyPath, filepath.Ext(copyPath)) + "_reporte.txt"

	if content != nil {
		err = writeFile(copyPath, string(content))
	} else {
		err = copyFile(path, copyPath)
	}
	if err != nil {
		return "", "", errors.FileError(errors.CodeFilePermission, path, err)
	}
	if err := writeFile(reportPath, report); err != nil {
		return "", "", errors.FileError(errors.CodeFilePermission, reportPath, err)
	}

	r.logger.WithFields(logger.Fields{
		"file":   filepath.Base(path),
		"report": reportPath,
	}).Warn("Novelties recorded")
	return copyPath, reportPath, nil
}

// Quarantine moves a failed file into the errors folder and writes a paired
// log explaining why
func (r *Router) Quarantine(path, reason string) (string, error) {
	stamp := r.stamp()
	dest := filepath.Join(r.errors, stampedName(path, "_ERROR", stamp))

	if err := moveFile(path, dest); err != nil {
		return "", errors.FileError(errors.CodeFilePermission, path, err)
	}
	logPath := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".log"
	if err := writeFile(logPath, reason); err != nil {
		r.logger.WithError(err).Warn("Could not write quarantine log")
	}

	r.logger.WithFields(logger.Fields{
		"file":   filepath.Base(path),
		"moved":  dest,
		"reason": firstLine(reason),
	}).Error("File quarantined")
	return dest, nil
}

// stampedName rebuilds "orders.xlsx" as "orders<suffix>_<stamp>.xlsx"
func stampedName(path, suffix, stamp string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s%s_%s%s", stem, suffix, stamp, ext)
}

// moveFile renames, falling back to copy plus remove across filesystems
func moveFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
