// Package pipeline sweeps the per-channel input folders, runs each file
// through normalize, mapping, and the ledger gateway, acknowledges it, and
// routes it to its terminal folder.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cash-interchange-service/internal/ack"
	"cash-interchange-service/internal/ledger"
	"cash-interchange-service/internal/mapping"
	"cash-interchange-service/internal/models"
	"cash-interchange-service/internal/normalize"
	"cash-interchange-service/internal/resolve"
	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"
)

// Config holds the folder layout and per-channel settings of one pipeline
type Config struct {
	XMLInput   string
	TextInput  string
	SheetInput string

	ManagedDir   string
	NoveltiesDir string
	ErrorsDir    string
	AckDir       string

	Partner      string
	PollInterval time.Duration

	// SheetLayouts maps a client code to its spreadsheet layout. Clients
	// without an entry use the standard layout.
	SheetLayouts map[int]mapping.LayoutKind
}

// Validate checks the folder configuration before the pipeline starts
func (c *Config) Validate() error {
	if c.XMLInput == "" && c.TextInput == "" && c.SheetInput == "" {
		return fmt.Errorf("at least one input folder must be configured")
	}
	if c.ManagedDir == "" {
		return fmt.Errorf("managed folder is required")
	}
	if c.NoveltiesDir == "" {
		return fmt.Errorf("novelties folder is required")
	}
	if c.ErrorsDir == "" {
		return fmt.Errorf("errors folder is required")
	}
	if c.AckDir == "" {
		return fmt.Errorf("acknowledgement folder is required")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval cannot be negative")
	}
	return nil
}

// Pipeline wires the channel normalizers to the mapper, the ledger gateway,
// the acknowledgement emitter, and the file router
type Pipeline struct {
	cfg     Config
	mapper  *mapping.Mapper
	gateway ledger.Gateway
	emitter *ack.Emitter
	router  *Router
	logger  logger.Logger
}

// NewPipeline builds a pipeline over the given resolver and ledger gateway
func NewPipeline(cfg Config, resolver resolve.Resolver, gateway ledger.Gateway, log logger.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "pipeline", "", err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Pipeline{
		cfg:     cfg,
		mapper:  mapping.NewMapper(resolver, log),
		gateway: gateway,
		emitter: ack.NewEmitter(cfg.AckDir, cfg.Partner, log),
		router:  NewRouter(cfg.ManagedDir, cfg.NoveltiesDir, cfg.ErrorsDir, log),
		logger:  log.WithComponent("pipeline"),
	}, nil
}

// RunOnce sweeps every configured channel once. Channels run in parallel;
// files within a channel are processed sequentially in name order.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	type sweep struct {
		channel models.Channel
		run     func(context.Context) error
	}

	sweeps := make([]sweep, 0, 3)
	if p.cfg.XMLInput != "" {
		sweeps = append(sweeps, sweep{models.ChannelXML, p.sweepXML})
	}
	if p.cfg.TextInput != "" {
		sweeps = append(sweeps, sweep{models.ChannelText, p.sweepText})
	}
	if p.cfg.SheetInput != "" {
		sweeps = append(sweeps, sweep{models.ChannelSheet, p.sweepSheets})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(sweeps))
	for i, s := range sweeps {
		wg.Add(1)
		go func(i int, s sweep) {
			defer wg.Done()
			errs[i] = logger.TimedOperation("sweep_"+string(s.channel), p.logger, func() error {
				return s.run(ctx)
			})
		}(i, s)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Watch runs the pipeline on a poll interval until the context is cancelled
func (p *Pipeline) Watch(ctx context.Context) error {
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.RunOnce(ctx); err != nil {
			p.logger.WithError(err).Error("Sweep failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) sweepXML(ctx context.Context) error {
	files, err := listFiles(p.cfg.XMLInput, ".xml")
	if err != nil {
		return err
	}

	normalizer := normalize.NewXMLNormalizer(p.logger)
	for _, path := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.processFile(ctx, normalizer, path)
	}
	return nil
}

func (p *Pipeline) sweepText(ctx context.Context) error {
	files, err := listFiles(p.cfg.TextInput, ".txt")
	if err != nil {
		return err
	}

	normalizer := normalize.NewTextNormalizer(p.logger)
	for _, path := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.processFile(ctx, normalizer, path)
	}
	return nil
}

// sweepSheets walks the per-client subfolders of the spreadsheet input. Each
// subfolder is named "<clientCode>_<clientName>" and its files are parsed
// with the layout configured for that client.
func (p *Pipeline) sweepSheets(ctx context.Context) error {
	entries, err := os.ReadDir(p.cfg.SheetInput)
	if err != nil {
		return errors.FileError(errors.CodeDirectoryError, p.cfg.SheetInput, err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !entry.IsDir() {
			continue
		}

		clientCode, clientName, err := ClientFromDir(entry.Name())
		if err != nil {
			p.logger.WithError(err).WithField("folder", entry.Name()).Warn("Skipping unrecognized client folder")
			continue
		}

		clientDir := filepath.Join(p.cfg.SheetInput, entry.Name())
		files, err := listFiles(clientDir, ".xlsx", ".xlsm", ".xls")
		if err != nil {
			p.logger.WithError(err).WithField("folder", clientDir).Error("Cannot list client folder")
			continue
		}

		kind := p.cfg.SheetLayouts[clientCode]
		if kind == "" {
			kind = mapping.LayoutStandard
		}

		log := p.logger.WithFields(logger.Fields{"client_code": clientCode, "client_name": clientName})
		for _, path := range files {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.processSheet(ctx, path, clientCode, kind, log)
		}
	}
	return nil
}

// processSheet builds the per-file layout (kit parameters live inside the
// workbook) and hands off to the shared file processing
func (p *Pipeline) processSheet(ctx context.Context, path string, clientCode int, kind mapping.LayoutKind, log logger.Logger) {
	kits, err := normalize.ReadKitParameters(path)
	if err != nil {
		log.WithError(err).WithField("file", filepath.Base(path)).Warn("Could not read kit parameters")
		kits = nil
	}

	layout, err := mapping.NewLayout(kind, clientCode, kits, log)
	if err != nil {
		p.quarantine(path, models.ChannelSheet, err.Error())
		return
	}

	p.processFile(ctx, normalize.NewSheetNormalizer(layout, log), path)
}

// processFile runs one file through parse, map, insert, acknowledge, route.
// Record-level failures never abort the file; the file's terminal folder is
// decided by how many records survived.
func (p *Pipeline) processFile(ctx context.Context, normalizer normalize.Normalizer, path string) {
	channel := normalizer.Channel()
	base := filepath.Base(path)
	tracker := logger.NewBatchTracker(base, string(channel), p.logger)

	records, stats, err := normalizer.Parse(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not a bad file. Leave it for the next sweep.
			return
		}
		// Unparsable or empty file. Quarantine it and acknowledge the
		// file itself as failed.
		p.quarantine(path, channel, err.Error())
		return
	}

	recordErrors := make([]*errors.RecordError, 0, len(stats.Errors))
	for _, rowErr := range stats.Errors {
		recordErrors = append(recordErrors, errors.NewRecordError(errors.CodeInvalidData, &errors.RecordContext{
			File:   path,
			Line:   rowErr.Line,
			Column: rowErr.Field,
			Value:  rowErr.Value,
		}, rowErr.Message, rowErr.Err))
	}

	ackLines := make([]models.AckLine, 0, len(records))
	for i := range records {
		rec := &records[i]
		line, recErr := p.processRecord(ctx, rec, tracker)
		if recErr != nil {
			recordErrors = append(recordErrors, recErr)
		}
		ackLines = append(ackLines, line)
	}

	tracker.Complete()
	batch := tracker.Stats()

	if _, err := p.emitter.Emit(ackLines, base); err != nil {
		p.logger.WithError(err).WithField("file", base).Error("Could not write acknowledgement")
	}

	p.route(path, channel, batch, stats, recordErrors)
}

// processRecord maps one record and writes it to the ledger, returning the
// acknowledgement line and, on failure, the record error for the report. An
// order already present in the ledger is acknowledged as processed.
func (p *Pipeline) processRecord(ctx context.Context, rec *models.RawRecord, tracker *logger.BatchTracker) (models.AckLine, *errors.RecordError) {
	service, transaction, err := p.mapper.Map(ctx, rec)
	if err != nil {
		tracker.Failed()
		return models.AckLine{ID: ackID(rec, nil), Status: models.AckError},
			recordError(rec, "record could not be mapped", err)
	}

	result, err := p.gateway.Insert(ctx, service, transaction)
	if err != nil {
		tracker.Failed()
		return models.AckLine{ID: ackID(rec, service), Status: models.AckError},
			recordError(rec, "record could not be written to the ledger", err)
	}

	if result.Outcome == ledger.AlreadyExists {
		tracker.Duplicate()
	} else {
		tracker.Inserted()
	}
	return models.AckLine{ID: ackID(rec, service), Status: models.AckSuccess}, nil
}

// route decides the file's terminal folder from the batch outcome
func (p *Pipeline) route(path string, channel models.Channel, batch logger.BatchStats, stats *normalize.ParseStats, recordErrors []*errors.RecordError) {
	processed := batch.Inserted + batch.Duplicates

	switch {
	case processed == 0:
		// Nothing survived. The file and its error log go to the
		// errors folder.
		reason := stats.String() + "\n\n" + errors.FormatRecordErrorsForUser(recordErrors)
		if _, err := p.router.Quarantine(path, reason); err != nil {
			p.logger.WithError(err).WithField("file", path).Error("Could not quarantine file")
		}

	case len(recordErrors) > 0:
		// Some records failed. Leave the failing rows plus the report
		// in the novelties folder, then archive the original.
		report := stats.String() + "\n\n" + errors.FormatRecordErrorsForUser(recordErrors)
		content := noveltyContent(path, channel, recordErrors)
		if _, _, err := p.router.Novelties(path, content, report); err != nil {
			p.logger.WithError(err).WithField("file", path).Error("Could not record novelties")
		}
		if _, err := p.router.Archive(path); err != nil {
			p.logger.WithError(err).WithField("file", path).Error("Could not archive file")
		}

	default:
		if _, err := p.router.Archive(path); err != nil {
			p.logger.WithError(err).WithField("file", path).Error("Could not archive file")
		}
	}
}

// noveltyContent builds the body of the novelties copy. For the line-oriented
// text channel only the header and the failing lines are retained, so the
// partner can correct and resubmit just those; XML documents and workbooks
// cannot be sliced by row and are copied whole (nil return).
func noveltyContent(path string, channel models.Channel, recordErrors []*errors.RecordError) []byte {
	if channel != models.ChannelText {
		return nil
	}

	failedLines := make(map[int]bool, len(recordErrors))
	failedIDs := make(map[string]bool, len(recordErrors))
	for _, recErr := range recordErrors {
		if recErr.Context == nil {
			continue
		}
		if recErr.Context.Line > 0 {
			failedLines[recErr.Context.Line] = true
		}
		if recErr.Context.OrderID != "" {
			failedIDs[recErr.Context.OrderID] = true
		}
	}
	if len(failedLines) == 0 && len(failedIDs) == 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var b strings.Builder
	for i, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fields := strings.Split(line, ",")
		// A failing business id spans several detail lines; the id is the
		// trailing field of each.
		keep := failedLines[i+1] ||
			failedIDs[strings.TrimSpace(fields[len(fields)-1])] ||
			strings.HasPrefix(line, "1,") // header travels with every resubmission
		if keep {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return []byte(b.String())
}

// quarantine handles a file-level failure: the file moves to the errors
// folder and the partner receives a file-name acknowledgement line
func (p *Pipeline) quarantine(path string, channel models.Channel, reason string) {
	base := filepath.Base(path)

	p.logger.WithFields(logger.Fields{
		"file":    base,
		"channel": string(channel),
	}).Error("File failed before record processing")

	if _, err := p.router.Quarantine(path, reason); err != nil {
		p.logger.WithError(err).WithField("file", path).Error("Could not quarantine file")
	}
	if _, err := p.emitter.Emit(nil, base); err != nil {
		p.logger.WithError(err).WithField("file", base).Error("Could not write acknowledgement")
	}
}

// ackID picks the identifier the partner is acknowledged under: the minted
// order id when mapping succeeded, otherwise the best id the file carried
func ackID(rec *models.RawRecord, service *models.ServiceRecord) string {
	if service != nil && service.OrderID != "" {
		return service.OrderID
	}
	if rec.OrderID != "" {
		return rec.OrderID
	}
	if rec.ExternalID != "" {
		return rec.ExternalID
	}
	return fmt.Sprintf("line-%d", rec.Line)
}

func recordError(rec *models.RawRecord, message string, cause error) *errors.RecordError {
	return errors.NewRecordError(errors.CodeInvalidData, &errors.RecordContext{
		File:    rec.SourceFile,
		Line:    rec.Line,
		OrderID: rec.OrderID,
	}, message, cause)
}

// ClientFromDir splits a client folder name of the form
// "45_BANCO_EJEMPLO" into its code and display name
func ClientFromDir(name string) (int, string, error) {
	parts := strings.SplitN(name, "_", 2)
	code, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || code <= 0 {
		return 0, "", fmt.Errorf("folder %q does not start with a client code", name)
	}

	clientName := ""
	if len(parts) == 2 {
		clientName = strings.TrimSpace(parts[1])
	}
	return code, clientName, nil
}

// listFiles returns the regular files in dir matching one of the extensions,
// sorted by name. Office lock files and hidden files are skipped.
func listFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		for _, want := range exts {
			if ext == want {
				files = append(files, filepath.Join(dir, name))
				break
			}
		}
	}

	sort.Strings(files)
	return files, nil
}
