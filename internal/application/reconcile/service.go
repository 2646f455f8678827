package reconcileapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/platform"
	"github.com/krbiz/backend/internal/domain/reconcile"
	"github.com/krbiz/backend/internal/domain/report"
	"github.com/krbiz/backend/internal/domain/shared"
	csvimport "github.com/krbiz/backend/internal/infrastructure/import"
)

// Config holds the pass settings
type Config struct {
	DefaultPolicy reconcile.Policy
	TrimValues    bool
	TrackingHint  string
}

// Service runs the session workflows
type Service struct {
	sessions  SessionStore
	settings  SettingsProvider
	parser    GridParser
	decryptor Decryptor
	archive   ReportArchive
	metrics   MetricsRecorder
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
}

// Option is a functional option for Service
type Option func(*Service)

// WithParser replaces the default CSV parser
func WithParser(p GridParser) Option {
	return func(s *Service) {
		s.parser = p
	}
}

// WithDecryptor enables password protected order files
func WithDecryptor(d Decryptor) Option {
	return func(s *Service) {
		s.decryptor = d
	}
}

// WithArchive stores a copy of every produced file
func WithArchive(a ReportArchive) Option {
	return func(s *Service) {
		s.archive = a
	}
}

// WithMetrics records pass and merge outcomes
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the clock used for output file names
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new Service
func NewService(sessions SessionStore, settings SettingsProvider, cfg Config, opts ...Option) *Service {
	if cfg.DefaultPolicy == "" {
		cfg.DefaultPolicy = reconcile.PolicyExact
	}
	if cfg.TrackingHint == "" {
		cfg.TrackingHint = reconcile.DefaultTrackingHint
	}
	s := &Service{
		sessions: sessions,
		settings: settings,
		parser:   csvimport.NewCSVParser(),
		metrics:  nopMetrics{},
		cfg:      cfg,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultPolicy returns the policy Run dispatches to
func (s *Service) DefaultPolicy() reconcile.Policy {
	return s.cfg.DefaultPolicy
}

// CreateSession starts a new empty session
func (s *Service) CreateSession() *Session {
	session := s.sessions.Create()
	s.logger.Info("Session created", zap.String("session_id", session.ID))
	return session
}

// DeleteSession drops a session and its uploads
func (s *Service) DeleteSession(sessionID string) {
	s.sessions.Delete(sessionID)
}

func (s *Service) session(sessionID string) (*Session, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, shared.WrapDomainError("NOT_FOUND", "session not found or expired", err)
	}
	return session, nil
}

// Output returns a file produced by an earlier merge or reconciliation of
// the session
func (s *Service) Output(ctx context.Context, sessionID, name string) (*OutputFile, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	f, ok := session.Output(name)
	if !ok {
		return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("no output file named %q", name))
	}
	return &f, nil
}

// Upload is one received file
type Upload struct {
	Name     string
	Data     []byte
	Password string
}

// UploadOrderFiles stores order files in the session. A file named like an
// existing one replaces it. The returned list reflects detection against
// the current platform settings.
func (s *Service) UploadOrderFiles(ctx context.Context, sessionID string, uploads []Upload) ([]OrderFileInfo, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	for _, u := range uploads {
		if strings.TrimSpace(u.Name) == "" {
			return nil, shared.NewDomainError("INVALID_INPUT", "file name is required")
		}
		if len(u.Data) == 0 {
			return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("%s is empty", u.Name))
		}
	}

	for _, u := range uploads {
		replaced := session.PutOrderFile(&OrderFile{
			Name:       u.Name,
			Data:       u.Data,
			Password:   u.Password,
			UploadedAt: s.now(),
		})
		s.logger.Info("Order file uploaded",
			zap.String("session_id", sessionID),
			zap.String("file", u.Name),
			zap.Int("bytes", len(u.Data)),
			zap.Bool("replaced", replaced))
	}
	return s.ListOrderFiles(ctx, sessionID)
}

// DeleteOrderFile removes an order file from the session
func (s *Service) DeleteOrderFile(ctx context.Context, sessionID, name string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if !session.RemoveOrderFile(name) {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("order file %q not found", name))
	}
	s.logger.Info("Order file deleted", zap.String("session_id", sessionID), zap.String("file", name))
	return nil
}

// ListOrderFiles returns every order file with its detected platform and
// order count, or the reason it would be skipped
func (s *Service) ListOrderFiles(ctx context.Context, sessionID string) ([]OrderFileInfo, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	reg, err := s.settings.PlatformRegistry(ctx)
	if err != nil {
		return nil, err
	}

	files := session.OrderFiles()
	infos := make([]OrderFileInfo, 0, len(files))
	for _, f := range files {
		info := OrderFileInfo{
			Name:       f.Name,
			Size:       len(f.Data),
			Encrypted:  s.decryptor != nil && s.decryptor.IsEncrypted(f.Data),
			UploadedAt: f.UploadedAt,
		}
		b, reason, _ := s.loadBatch(f, reg)
		if b != nil {
			info.Platform = b.Platform()
			info.Orders = b.Raw.Len()
		} else {
			info.Skipped = reason
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// UploadDeliveryConfirmation replaces the session's delivery confirmation.
// The first line of the file is its header.
func (s *Service) UploadDeliveryConfirmation(ctx context.Context, sessionID, name string, data []byte) (*DeliveryInfo, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	grid, err := s.parser.ParseBytes(name, data)
	if err != nil {
		return nil, shared.WrapDomainError("INVALID_INPUT", fmt.Sprintf("cannot read %s", name), err)
	}
	table, err := grid.Table(0)
	if err != nil {
		return nil, shared.WrapDomainError("INVALID_INPUT", fmt.Sprintf("cannot read %s", name), err)
	}

	c := delivery.NewConfirmation(name, table)
	c.UploadedAt = s.now()
	session.SetDelivery(c)

	s.logger.Info("Delivery confirmation uploaded",
		zap.String("session_id", sessionID),
		zap.String("file", name),
		zap.Int("rows", table.Len()))
	return deliveryInfo(c), nil
}

// Delivery describes the session's delivery confirmation
func (s *Service) Delivery(ctx context.Context, sessionID string) (*DeliveryInfo, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	c := session.Delivery()
	if c == nil {
		return nil, shared.WrapDomainError("NOT_FOUND", "no delivery confirmation uploaded", reconcile.ErrNoDeliveryConfirmation)
	}
	return deliveryInfo(c), nil
}

// ClearDelivery drops the session's delivery confirmation
func (s *Service) ClearDelivery(ctx context.Context, sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.ClearDelivery()
	return nil
}

func deliveryInfo(c *delivery.Confirmation) *DeliveryInfo {
	return &DeliveryInfo{
		Name:       c.SourceFile,
		Rows:       c.Table.Len(),
		Columns:    append([]string(nil), c.Columns()...),
		UploadedAt: c.UploadedAt,
	}
}

// loadBatch decrypts, parses, detects and translates one order file. On
// failure it returns the skip reason.
func (s *Service) loadBatch(f *OrderFile, reg *platform.Registry) (*platform.Batch, string, error) {
	data := f.Data
	if s.decryptor != nil && s.decryptor.IsEncrypted(data) {
		plain, err := s.decryptor.Decrypt(data, f.Password)
		if errors.Is(err, shared.ErrInvalidCredential) {
			return nil, SkipInvalidCredential, err
		}
		if err != nil {
			return nil, SkipUnreadable, err
		}
		data = plain
	}

	grid, err := s.parser.ParseBytes(f.Name, data)
	if err != nil {
		return nil, SkipUnreadable, err
	}
	match, ok := platform.Detect(grid, reg.Schemas())
	if !ok {
		return nil, SkipNoMatchingPlatform, platform.ErrNoMatchingPlatform
	}
	b, err := platform.NewBatch(f.Name, match)
	if err != nil {
		return nil, SkipUnreadable, err
	}
	return b, "", nil
}

// loadBatches loads every order file of a session snapshot. Files that
// cannot be used are reported, never fatal.
func (s *Service) loadBatches(files []*OrderFile, reg *platform.Registry) ([]*platform.Batch, SkipReport) {
	var (
		batches []*platform.Batch
		skipped SkipReport
	)
	for _, f := range files {
		b, reason, err := s.loadBatch(f, reg)
		if b == nil {
			skipped.add(f.Name, reason, err)
			s.logger.Warn("Order file skipped",
				zap.String("file", f.Name),
				zap.String("reason", reason),
				zap.Error(err))
			continue
		}
		s.logger.Debug("Order file detected",
			zap.String("file", f.Name),
			zap.String("platform", b.Platform()),
			zap.Int("orders", b.Raw.Len()))
		batches = append(batches, b)
	}
	return batches, skipped
}

// pass gathers everything one reconciliation reads
type pass struct {
	session *Session
	input   reconcile.Input
	skipped SkipReport
}

func (s *Service) preparePass(ctx context.Context, sessionID string) (*pass, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	confirmation := session.Delivery()
	if confirmation == nil {
		return nil, reconcile.ErrNoDeliveryConfirmation
	}

	reg, err := s.settings.PlatformRegistry(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := s.settings.LoadKeys(ctx)
	if err != nil {
		return nil, err
	}

	batches, skipped := s.loadBatches(session.OrderFiles(), reg)
	pairs := make(map[string][]delivery.ColumnPair, reg.Len())
	for _, schema := range reg.Schemas() {
		resolved := delivery.ResolveKeys(keys, schema)
		if len(resolved) == 0 {
			s.logger.Warn("Platform has no usable match key", zap.String("platform", schema.Platform))
		}
		pairs[schema.Platform] = resolved
	}

	return &pass{
		session: session,
		input:   reconcile.Input{Batches: batches, Delivery: confirmation, Pairs: pairs},
		skipped: skipped,
	}, nil
}

// Reconcile runs the exact policy and renders one report per platform that
// has a report layout, plus the leftover table
func (s *Service) Reconcile(ctx context.Context, sessionID string) (*ReconcileResult, error) {
	start := time.Now()
	p, err := s.preparePass(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	reports, err := s.settings.ReportRegistry(ctx)
	if err != nil {
		return nil, err
	}

	result, err := reconcile.Reconcile(p.input, reports.Has)
	if err != nil {
		return nil, err
	}

	date := s.now()
	out := &ReconcileResult{
		Summary:  result.Summary,
		Skipped:  p.skipped,
		Outcomes: result.Outcomes,
		Leftover: OutputFile{Name: leftoverName(date), Table: result.Leftover},
	}
	for _, pp := range result.Platforms {
		schema, ok := reports.Lookup(pp.Platform)
		if !ok {
			continue
		}
		out.Reports = append(out.Reports, OutputFile{
			Name:     schema.ExportName(date),
			Platform: pp.Platform,
			Table:    report.RenderTable(schema, pp.Pairs),
		})
	}

	for i := range out.Reports {
		s.archiveFile(ctx, &out.Reports[i])
	}
	s.archiveFile(ctx, &out.Leftover)
	p.session.KeepOutputs(append(out.Reports, out.Leftover)...)

	s.logSummary(ctx, sessionID, reconcile.PolicyExact, out.Summary, p.skipped, time.Since(start))
	return out, nil
}

// BackfillTracking runs the substring policy and returns, per order file,
// the rows that received a tracking number
func (s *Service) BackfillTracking(ctx context.Context, sessionID string) (*BackfillResult, error) {
	start := time.Now()
	p, err := s.preparePass(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := reconcile.Backfill(p.input, reconcile.BackfillOptions{
		TrackingHint: s.cfg.TrackingHint,
		TrimValues:   s.cfg.TrimValues,
	})
	if err != nil {
		return nil, err
	}

	date := s.now()
	out := &BackfillResult{
		Summary:  result.Summary,
		Skipped:  p.skipped,
		Outcomes: result.Outcomes,
		Leftover: OutputFile{Name: leftoverName(date), Table: result.Leftover},
	}
	for _, f := range result.Files {
		if f.Table.Len() == 0 {
			continue
		}
		out.Files = append(out.Files, OutputFile{
			Name:     backfillName(f.SourceFile, date),
			Platform: f.Platform,
			Table:    f.Table,
		})
	}

	for i := range out.Files {
		s.archiveFile(ctx, &out.Files[i])
	}
	s.archiveFile(ctx, &out.Leftover)
	p.session.KeepOutputs(append(out.Files, out.Leftover)...)

	s.logSummary(ctx, sessionID, reconcile.PolicySubstring, out.Summary, p.skipped, time.Since(start))
	return out, nil
}

// Run executes the configured default policy
func (s *Service) Run(ctx context.Context, sessionID string) (*RunResult, error) {
	switch s.cfg.DefaultPolicy {
	case reconcile.PolicySubstring:
		r, err := s.BackfillTracking(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return &RunResult{Policy: reconcile.PolicySubstring, Backfill: r}, nil
	case reconcile.PolicyExact:
		r, err := s.Reconcile(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return &RunResult{Policy: reconcile.PolicyExact, Reconcile: r}, nil
	default:
		return nil, fmt.Errorf("%w: %q", reconcile.ErrUnknownPolicy, s.cfg.DefaultPolicy)
	}
}

func (s *Service) logSummary(ctx context.Context, sessionID string, policy reconcile.Policy, sum reconcile.Summary, skipped SkipReport, elapsed time.Duration) {
	s.metrics.RecordPass(ctx, policy, sum, skipped.Count(), elapsed)
	s.logger.Info("Reconciliation finished",
		zap.String("session_id", sessionID),
		zap.String("policy", string(policy)),
		zap.Int("delivery_rows", sum.DeliveryRows),
		zap.Int("matched", sum.Matched),
		zap.Int("unmatched", sum.Unmatched),
		zap.Int("ambiguous", sum.Ambiguous),
		zap.Int("leftover", sum.Leftover),
		zap.Int("skipped_files", skipped.Count()),
		zap.Duration("elapsed", elapsed))
}

// archiveFile uploads a copy of f when an archive is configured. A failed
// upload is logged and leaves f without an archive reference.
func (s *Service) archiveFile(ctx context.Context, f *OutputFile) {
	if s.archive == nil || f.Table == nil {
		return
	}
	data, err := csvimport.EncodeTable(f.Table)
	if err != nil {
		s.logger.Error("Failed to encode file for archive", zap.String("file", f.Name), zap.Error(err))
		return
	}
	archived, err := s.archive.Archive(ctx, f.Name, data)
	if err != nil {
		s.logger.Error("Failed to archive file", zap.String("file", f.Name), zap.Error(err))
		return
	}
	f.Archived = &archived
}

func leftoverName(date time.Time) string {
	return fmt.Sprintf("leftover-%s.csv", date.Format(time.DateOnly))
}

// backfillName is <source name without extension>-tracking-<date>.csv
func backfillName(source string, date time.Time) string {
	base := source
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return fmt.Sprintf("%s-tracking-%s.csv", base, date.Format(time.DateOnly))
}
