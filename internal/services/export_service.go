package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/cvitapilot/cvitapilot/internal/models"
	mongorepo "github.com/cvitapilot/cvitapilot/internal/repositories/mongo"
	pgrepo "github.com/cvitapilot/cvitapilot/internal/repositories/postgres"
	"github.com/cvitapilot/cvitapilot/internal/render"
	"github.com/cvitapilot/cvitapilot/internal/storage"
	"github.com/cvitapilot/cvitapilot/internal/utils"
	"github.com/cvitapilot/cvitapilot/internal/validation"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// settleTimeout bounds status writes made after the job context ended.
const settleTimeout = 10 * time.Second

// RenderedFile is the result of a synchronous export. Fallback is set when the
// PDF could not be produced and Data holds the print-ready HTML instead.
type RenderedFile struct {
	FileName    string
	ContentType string
	Data        []byte
	Fallback    bool
}

type ExportService interface {
	Preview(ctx context.Context, userID, cvID string, opts models.ExportOptions) ([]byte, error)
	RenderPDF(ctx context.Context, userID, cvID string, opts models.ExportOptions) (*RenderedFile, error)
	Enqueue(ctx context.Context, userID, cvID string, opts models.ExportOptions) (*models.Export, error)
	Process(ctx context.Context, job ExportJob) error
	Get(ctx context.Context, userID, exportID string) (*models.Export, error)
	List(ctx context.Context, userID, cvID string) ([]models.Export, error)
	Events(ctx context.Context, userID, exportID string) ([]models.ExportEvent, error)
}

type ExportDeps struct {
	CVs      CVService
	Exports  pgrepo.ExportRepository
	EventLog mongorepo.ExportEventRepository // optional
	HTML     *render.HTMLRenderer
	PDF      render.PDFRenderer  // nil falls back to print
	Store    storage.ObjectStore // nil disables background exports
	Queue    ExportQueue         // nil disables background exports
	Logger   *logrus.Logger
}

type exportService struct {
	ExportDeps
	urlTTL time.Duration
	now    func() time.Time
}

func NewExportService(deps ExportDeps, downloadURLTTL time.Duration) ExportService {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if downloadURLTTL <= 0 {
		downloadURLTTL = 15 * time.Minute
	}
	return &exportService{ExportDeps: deps, urlTTL: downloadURLTTL, now: time.Now}
}

func checkOptions(op string, opts models.ExportOptions) (models.ExportOptions, error) {
	opts = opts.Normalized()
	if err := validation.Struct(opts); err != nil {
		return opts, utils.ED(utils.CodeInvalidArgument, op, "invalid export options", validation.FieldErrors(err), err)
	}
	return opts, nil
}

func (s *exportService) Preview(ctx context.Context, userID, cvID string, opts models.ExportOptions) ([]byte, error) {
	const op = "ExportService.Preview"

	opts, err := checkOptions(op, opts)
	if err != nil {
		return nil, err
	}
	cv, err := s.CVs.Get(ctx, userID, cvID)
	if err != nil {
		return nil, err
	}
	out, err := s.HTML.RenderBytes(cv, render.Options{Template: opts.Template, Paper: opts.PaperSize})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to render preview", err)
	}
	return out, nil
}

func (s *exportService) RenderPDF(ctx context.Context, userID, cvID string, opts models.ExportOptions) (*RenderedFile, error) {
	const op = "ExportService.RenderPDF"

	opts, err := checkOptions(op, opts)
	if err != nil {
		return nil, err
	}
	cv, err := s.CVs.Get(ctx, userID, cvID)
	if err != nil {
		return nil, err
	}
	ropts := render.Options{Template: opts.Template, Paper: opts.PaperSize}
	html, err := s.HTML.RenderBytes(cv, ropts)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to render cv", err)
	}

	if s.PDF != nil {
		pdf, err := s.PDF.RenderPDF(ctx, html, opts.PaperSize)
		if err == nil {
			return &RenderedFile{FileName: render.FileName(cv), ContentType: ContentTypePDF, Data: pdf}, nil
		}
		if ctx.Err() != nil {
			return nil, utils.E(utils.CodeTimeout, op, "export cancelled", ctx.Err())
		}
		s.Logger.WithError(err).WithField("cv_id", cvID).Warn("pdf rendering failed, falling back to print")
	}

	ropts.AutoPrint = true
	page, err := s.HTML.RenderBytes(cv, ropts)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to render cv", err)
	}
	return &RenderedFile{FileName: render.FileName(cv), ContentType: ContentTypeHTML, Data: page, Fallback: true}, nil
}

func (s *exportService) Enqueue(ctx context.Context, userID, cvID string, opts models.ExportOptions) (*models.Export, error) {
	const op = "ExportService.Enqueue"

	if s.Queue == nil || s.Store == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "background export is not configured", nil)
	}
	opts, err := checkOptions(op, opts)
	if err != nil {
		return nil, err
	}
	cv, err := s.CVs.Get(ctx, userID, cvID)
	if err != nil {
		return nil, err
	}
	rawOpts, err := json.Marshal(opts)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode options", err)
	}

	e := &models.Export{
		UserID:    userID,
		CVID:      cv.ID,
		Status:    models.ExportPending,
		Format:    "pdf",
		PaperSize: opts.PaperSize,
		FileName:  render.FileName(cv),
		Options:   datatypes.JSON(rawOpts),
		CreatedAt: s.now().UTC(),
	}
	if err := s.Exports.Create(ctx, e); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create export", err)
	}
	if err := s.Queue.Enqueue(ctx, ExportJob{ExportID: e.ID, UserID: userID}); err != nil {
		s.fail(ctx, e, s.now(), "failed to queue export")
		return nil, utils.E(utils.CodeUnavailable, op, "failed to queue export", err)
	}
	s.record(ctx, e, "queued", 0)
	return e, nil
}

// Process renders one queued export. Redelivered jobs of finished exports are ignored.
func (s *exportService) Process(ctx context.Context, job ExportJob) error {
	const op = "ExportService.Process"

	e, err := s.Exports.Get(ctx, job.ExportID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "export not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load export", err)
	}
	if e.Finished() {
		return nil
	}
	start := s.now()

	e.Status = models.ExportProcessing
	if err := s.Exports.Update(ctx, e); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update export", err)
	}
	s.record(ctx, e, "rendering", 0)

	var opts models.ExportOptions
	if len(e.Options) > 0 {
		if err := json.Unmarshal(e.Options, &opts); err != nil {
			s.Logger.WithError(err).WithField("export_id", e.ID).Error("corrupt export options")
			s.fail(ctx, e, start, "invalid export options")
			return utils.E(utils.CodeInternal, op, "invalid export options", err)
		}
	}
	opts = opts.Normalized()

	cv, err := s.CVs.Get(ctx, e.UserID, e.CVID)
	if err != nil {
		s.abort(ctx, e, start, "cv not available")
		return err
	}
	if s.PDF == nil || s.Store == nil {
		s.abort(ctx, e, start, "pdf rendering is not available")
		return utils.E(utils.CodeUnavailable, op, "pdf rendering is not available", render.ErrRendererUnavailable)
	}

	html, err := s.HTML.RenderBytes(cv, render.Options{Template: opts.Template, Paper: opts.PaperSize})
	if err != nil {
		s.abort(ctx, e, start, "failed to render cv")
		return utils.E(utils.CodeInternal, op, "failed to render cv", err)
	}
	pdf, err := s.PDF.RenderPDF(ctx, html, opts.PaperSize)
	if err != nil {
		s.abort(ctx, e, start, "failed to render pdf")
		return utils.E(utils.CodeInternal, op, "failed to render pdf", err)
	}

	key := storage.ExportObjectName(e.UserID, e.ID)
	if _, err := s.Store.Upload(ctx, key, ContentTypePDF, bytes.NewReader(pdf)); err != nil {
		s.abort(ctx, e, start, "failed to store pdf")
		return utils.E(utils.CodeUnavailable, op, "failed to store pdf", err)
	}

	done := s.now().UTC()
	e.Status = models.ExportDone
	e.ObjectKey = key
	e.SizeBytes = int64(len(pdf))
	e.FileName = render.FileName(cv)
	e.Error = ""
	e.CompletedAt = &done
	// the file is stored; the row must say so even if shutdown began meanwhile
	sctx, cancel := settle(ctx)
	defer cancel()
	if err := s.Exports.Update(sctx, e); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update export", err)
	}
	s.record(sctx, e, "export ready", done.Sub(start))
	return nil
}

// settle derives a context for bookkeeping writes that must land even after
// the job's context was cancelled.
func settle(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

func (s *exportService) fail(ctx context.Context, e *models.Export, start time.Time, msg string) {
	ctx, cancel := settle(ctx)
	defer cancel()

	at := s.now().UTC()
	e.Status = models.ExportFailed
	e.Error = msg
	e.CompletedAt = &at
	if err := s.Exports.Update(ctx, e); err != nil {
		s.Logger.WithError(err).WithField("export_id", e.ID).Error("failed to mark export failed")
	}
	s.record(ctx, e, msg, at.Sub(start))
}

// abort handles a failed render step. When the job context is gone the worker
// is shutting down: the export goes back to pending so a redelivered message
// can finish it, instead of being reported as failed.
func (s *exportService) abort(ctx context.Context, e *models.Export, start time.Time, msg string) {
	if ctx.Err() == nil {
		s.fail(ctx, e, start, msg)
		return
	}
	ctx, cancel := settle(ctx)
	defer cancel()

	e.Status = models.ExportPending
	e.Error = ""
	e.CompletedAt = nil
	if err := s.Exports.Update(ctx, e); err != nil {
		s.Logger.WithError(err).WithField("export_id", e.ID).Error("failed to requeue interrupted export")
	}
	s.record(ctx, e, "export interrupted, it will be retried", s.now().Sub(start))
}

// record publishes the export status and appends it to the audit trail.
func (s *exportService) record(ctx context.Context, e *models.Export, msg string, took time.Duration) {
	log := s.Logger.WithFields(logrus.Fields{"export_id": e.ID, "status": e.Status})

	if s.Queue != nil {
		st := ExportStatusMessage{
			ExportID: e.ID,
			Status:   string(e.Status),
			Message:  msg,
			FileName: e.FileName,
		}
		if e.Status == models.ExportDone {
			st.DownloadURL = s.downloadURL(ctx, e)
		}
		if err := s.Queue.PublishStatus(ctx, st); err != nil {
			log.WithError(err).Warn("failed to publish export status")
		}
	}
	if s.EventLog != nil {
		ev := &models.ExportEvent{
			ExportID:   e.ID,
			UserID:     e.UserID,
			Status:     e.Status,
			Message:    msg,
			DurationMS: took.Milliseconds(),
		}
		if err := s.EventLog.Insert(ctx, ev); err != nil {
			log.WithError(err).Warn("failed to record export event")
		}
	}
}

func (s *exportService) downloadURL(ctx context.Context, e *models.Export) string {
	if s.Store == nil || e.ObjectKey == "" {
		return ""
	}
	u, err := s.Store.SignedGetURL(ctx, e.ObjectKey, e.FileName, s.urlTTL)
	if err != nil {
		s.Logger.WithError(err).WithField("export_id", e.ID).Warn("failed to sign download url")
		return ""
	}
	return u
}

func (s *exportService) Get(ctx context.Context, userID, exportID string) (*models.Export, error) {
	const op = "ExportService.Get"

	if userID == "" || exportID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and export_id are required", nil)
	}
	e, err := s.Exports.Get(ctx, exportID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "export not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get export", err)
	}
	if e.UserID != userID {
		return nil, utils.E(utils.CodeNotFound, op, "export not found", nil)
	}
	if e.Status == models.ExportDone {
		e.DownloadURL = s.downloadURL(ctx, e)
	}
	return e, nil
}

func (s *exportService) List(ctx context.Context, userID, cvID string) ([]models.Export, error) {
	const op = "ExportService.List"

	if _, err := s.CVs.Get(ctx, userID, cvID); err != nil {
		return nil, err
	}
	rows, err := s.Exports.ListByCV(ctx, cvID, 50)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list exports", err)
	}
	for i := range rows {
		if rows[i].Status == models.ExportDone {
			rows[i].DownloadURL = s.downloadURL(ctx, &rows[i])
		}
	}
	return rows, nil
}

func (s *exportService) Events(ctx context.Context, userID, exportID string) ([]models.ExportEvent, error) {
	const op = "ExportService.Events"

	if _, err := s.Get(ctx, userID, exportID); err != nil {
		return nil, err
	}
	if s.EventLog == nil {
		return []models.ExportEvent{}, nil
	}
	out, err := s.EventLog.ListByExport(ctx, exportID, 100)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list events", err)
	}
	return out, nil
}
