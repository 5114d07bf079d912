// Package ack writes the byte-exact acknowledgement files partners poll
// for. One acknowledgement file answers one input file.
package ack

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"
)

// DefaultPartner names the interchange partner in acknowledgement file names
const DefaultPartner = "VATCO"

// ccSegmentPrefix marks the file-name segment that carries the partner's
// two-digit CC code
const ccSegmentPrefix = "C4U-"

// Emitter writes acknowledgement files into one output directory
type Emitter struct {
	dir     string
	partner string
	logger  logger.Logger
	now     func() time.Time
}

// NewEmitter creates an emitter writing into dir. An empty partner falls
// back to the default partner name.
func NewEmitter(dir, partner string, log logger.Logger) *Emitter {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if partner == "" {
		partner = DefaultPartner
	}
	return &Emitter{
		dir:     dir,
		partner: partner,
		logger:  log.WithComponent("ack_emitter"),
		now:     time.Now,
	}
}

// Emit writes the acknowledgement for one source file and returns the
// written path. Lines are deduplicated and sorted; when the same id carries
// both outcomes the failure wins. An empty line set acknowledges the file
// itself as failed. The file appears atomically.
func (e *Emitter) Emit(lines []models.AckLine, sourceFileName string) (string, error) {
	if len(lines) == 0 {
		lines = []models.AckLine{{ID: sourceFileName, Status: models.AckError}}
	}

	statuses := make(map[string]models.AckStatus, len(lines))
	allFailed := true
	for _, line := range lines {
		id := strings.TrimSpace(line.ID)
		if id == "" {
			continue
		}
		if line.Status != models.AckError {
			allFailed = false
		}
		if existing, seen := statuses[id]; seen {
			// A failure for an id outweighs a success for the same id.
			if existing == models.AckError || line.Status == models.AckError {
				statuses[id] = models.AckError
			}
		} else {
			statuses[id] = line.Status
		}
	}

	ids := make([]string, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var body strings.Builder
	for _, id := range ids {
		body.WriteString(id)
		body.WriteString(",")
		body.WriteString(string(statuses[id]))
		body.WriteString("\n")
	}

	cc := ExtractCCCode(sourceFileName)
	if allFailed {
		// A fully failed file is acknowledged under the neutral code.
		cc = "00"
	}

	name := "TR2_" + e.partner + "_" + cc + e.timestamp(sourceFileName) + ".txt"
	path := filepath.Join(e.dir, name)

	if err := writeAtomic(path, []byte(body.String())); err != nil {
		return "", errors.FileError(errors.CodeFilePermission, path, err)
	}

	e.logger.WithFields(logger.Fields{
		"source": sourceFileName,
		"ack":    name,
		"ids":    len(ids),
	}).Info("Acknowledgement written")

	return path, nil
}

// ExtractCCCode pulls the two-digit CC code from a source file name of the
// form "ICOREX_C4U-01-Partner_2656_20250512_164009.xml", or "00"
func ExtractCCCode(fileName string) string {
	parts := strings.Split(fileName, "_")
	if len(parts) > 1 && strings.HasPrefix(parts[1], ccSegmentPrefix) {
		segment := parts[1][len(ccSegmentPrefix):]
		if len(segment) >= 2 && isDigits(segment[:2]) {
			return segment[:2]
		}
	}
	return "00"
}

// timestamp derives YYMMDDHHMMSS from the source file name's date and time
// segments, falling back to the current time
func (e *Emitter) timestamp(fileName string) string {
	parts := strings.Split(fileName, "_")
	if len(parts) >= 5 {
		ymd := parts[3]
		hms := digitsOnly(strings.SplitN(parts[4], ".", 2)[0])
		if len(hms) == 4 {
			// No seconds in the name.
			hms += "00"
		} else if len(hms) > 6 {
			hms = hms[:6]
		}
		if len(ymd) == 8 && isDigits(ymd) && len(hms) == 6 {
			if t, err := time.Parse("20060102150405", ymd+hms); err == nil {
				return t.Format("060102150405")
			}
		}
	}
	return e.now().Format("060102150405")
}

// writeAtomic writes via a temp file in the same directory plus rename
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tr2-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
