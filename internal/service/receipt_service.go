package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsaihsilo/receipt-recognition-app/internal/config"
	"github.com/tsaihsilo/receipt-recognition-app/internal/domain"
	"github.com/tsaihsilo/receipt-recognition-app/internal/imaging"
	"github.com/tsaihsilo/receipt-recognition-app/internal/repository"
)

// ReceiptService runs the full pipeline for one receipt: normalize,
// upload, verify, submit the analysis job, poll it to a terminal
// status and persist the result.
type ReceiptService interface {
	Process(ctx context.Context, req Request) (*domain.RunReport, error)
}

// Request names the locations for one run. Empty fields are derived:
// the normalized path from the source, the object key from the
// normalized basename plus the configured prefix, the result path from
// configuration.
type Request struct {
	SourcePath     string
	NormalizedPath string
	Key            string
	ResultPath     string
}

type receiptService struct {
	normalizer *imaging.Normalizer
	objects    repository.ObjectRepository
	analysis   repository.AnalysisRepository
	cfg        *config.Config
	log        *zap.Logger
}

func NewReceiptService(objects repository.ObjectRepository, analysis repository.AnalysisRepository, cfg *config.Config, log *zap.Logger) ReceiptService {
	return &receiptService{
		normalizer: imaging.NewNormalizer(cfg.Pipeline.JPEGQuality, log),
		objects:    objects,
		analysis:   analysis,
		cfg:        cfg,
		log:        log,
	}
}

func (s *receiptService) Process(ctx context.Context, req Request) (*domain.RunReport, error) {
	started := time.Now()
	req = s.withDefaults(req)

	artifact, err := s.normalizer.Prepare(req.SourcePath, req.NormalizedPath)
	if err != nil {
		return nil, err
	}

	object := domain.RemoteObject{Bucket: s.cfg.Storage.Bucket, Key: req.Key}

	if err := s.upload(ctx, artifact, object); err != nil {
		return nil, err
	}

	if err := s.verify(ctx, artifact, object); err != nil {
		return nil, err
	}

	jobID, err := s.submit(ctx, object)
	if err != nil {
		return nil, err
	}

	snapshot, polls, err := s.await(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if snapshot.Status == domain.JobStatusFailed {
		s.log.Error("Analysis job failed",
			zap.String("jobId", jobID),
			zap.String("statusMessage", snapshot.StatusMessage))
		return nil, &domain.JobFailedError{
			JobID:         jobID,
			Status:        snapshot.Status,
			StatusMessage: snapshot.StatusMessage,
		}
	}

	if err := s.writeResult(req.ResultPath, snapshot); err != nil {
		return nil, err
	}

	report := &domain.RunReport{
		Object:     object,
		JobID:      jobID,
		Status:     snapshot.Status,
		ResultPath: req.ResultPath,
		Polls:      polls,
		Elapsed:    time.Since(started),
	}

	s.log.Info("Receipt analysis complete",
		zap.String("jobId", jobID),
		zap.String("object", object.URI()),
		zap.String("result", req.ResultPath),
		zap.Int("blocks", snapshot.Blocks),
		zap.Int("polls", polls),
		zap.Duration("elapsed", report.Elapsed))

	return report, nil
}

func (s *receiptService) withDefaults(req Request) Request {
	if req.NormalizedPath == "" {
		req.NormalizedPath = NormalizedPathFor(req.SourcePath)
	}
	if req.Key == "" {
		req.Key = ObjectKeyFor(req.NormalizedPath, s.cfg.Storage.KeyPrefix)
	}
	if req.ResultPath == "" {
		req.ResultPath = s.cfg.Pipeline.ResultPath
	}
	return req
}

func (s *receiptService) upload(ctx context.Context, artifact *domain.NormalizedArtifact, object domain.RemoteObject) error {
	file, err := os.Open(artifact.Path)
	if err != nil {
		return domain.UploadError("open normalized artifact", err)
	}
	defer file.Close()

	s.log.Info("Uploading receipt",
		zap.String("path", artifact.Path),
		zap.String("destination", object.URI()))

	if err := s.objects.UploadFile(ctx, object.Key, file, artifact.Size, artifact.ContentType); err != nil {
		return domain.UploadError(fmt.Sprintf("upload %s", object.URI()), err)
	}

	return nil
}

// verify checks the uploaded object with a HEAD-style stat. A failed
// check is a warning unless strict verification is enabled.
func (s *receiptService) verify(ctx context.Context, artifact *domain.NormalizedArtifact, object domain.RemoteObject) error {
	meta, err := s.objects.StatFile(ctx, object.Key)
	switch {
	case err != nil:
		err = domain.VerifyError(fmt.Sprintf("stat %s", object.URI()), err)
	case meta.ContentLength != artifact.Size:
		err = domain.VerifyError(fmt.Sprintf("size mismatch for %s: local %d, remote %d",
			object.URI(), artifact.Size, meta.ContentLength), nil)
	case meta.ContentType != "" && meta.ContentType != artifact.ContentType:
		err = domain.VerifyError(fmt.Sprintf("content type mismatch for %s: sent %s, stored %s",
			object.URI(), artifact.ContentType, meta.ContentType), nil)
	default:
		s.log.Info("Upload verified",
			zap.String("object", object.URI()),
			zap.Int64("size", meta.ContentLength),
			zap.String("contentType", meta.ContentType),
			zap.Time("lastModified", meta.LastModified))
		return nil
	}

	if s.cfg.Pipeline.StrictVerify {
		return err
	}

	s.log.Warn("Upload verification failed, continuing", zap.Error(err))
	return nil
}

func (s *receiptService) submit(ctx context.Context, object domain.RemoteObject) (string, error) {
	opts := domain.AnalysisOptions{
		FeatureTypes:       s.cfg.Analysis.FeatureTypes,
		JobTag:             s.cfg.Analysis.JobTag,
		ClientRequestToken: uuid.New().String(),
	}

	jobID, err := s.analysis.StartAnalysis(ctx, object, opts)
	if err != nil {
		return "", domain.SubmitError(fmt.Sprintf("start analysis for %s", object.URI()), err)
	}

	return jobID, nil
}

// await polls the job at the configured interval until it reaches a
// terminal status. The first check happens immediately; sleeps only
// separate consecutive checks. A positive poll timeout bounds the wait.
func (s *receiptService) await(ctx context.Context, jobID string) (*domain.JobSnapshot, int, error) {
	var deadline time.Time
	if s.cfg.Analysis.PollTimeout > 0 {
		deadline = time.Now().Add(s.cfg.Analysis.PollTimeout)
	}

	for polls := 1; ; polls++ {
		snapshot, err := s.analysis.GetAnalysis(ctx, jobID)
		if err != nil {
			return nil, polls, domain.PollError(fmt.Sprintf("poll job %s", jobID), err)
		}

		s.log.Info("Job status",
			zap.String("jobId", jobID),
			zap.String("status", string(snapshot.Status)),
			zap.Int("poll", polls))

		if snapshot.Status.Terminal() {
			return snapshot, polls, nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, polls, domain.TimeoutError(
				fmt.Sprintf("job %s still %s after %s", jobID, snapshot.Status, s.cfg.Analysis.PollTimeout), nil)
		}

		select {
		case <-ctx.Done():
			return nil, polls, domain.PollError("wait for analysis job", ctx.Err())
		case <-time.After(s.cfg.Analysis.PollInterval):
		}
	}
}

func (s *receiptService) writeResult(path string, snapshot *domain.JobSnapshot) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, snapshot.Raw, "", "  "); err != nil {
		return domain.WriteError("format analysis result", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return domain.WriteError("create result directory", err)
		}
	}

	if err := os.WriteFile(path, pretty.Bytes(), 0644); err != nil {
		return domain.WriteError(fmt.Sprintf("write %s", path), err)
	}

	s.log.Info("Analysis result saved",
		zap.String("path", path),
		zap.Int("blocks", snapshot.Blocks),
		zap.Int32("pages", snapshot.Pages))

	return nil
}

// NormalizedPathFor derives the upload artifact path for a source:
// images become a sibling .jpg, PDFs a sibling optimized copy.
func NormalizedPathFor(sourcePath string) string {
	base := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath))
	if imaging.KindOf(sourcePath) == domain.KindPDF {
		return base + "-optimized.pdf"
	}
	return base + ".jpg"
}

// ObjectKeyFor joins the optional key prefix with the artifact basename.
func ObjectKeyFor(normalizedPath, prefix string) string {
	key := filepath.Base(normalizedPath)
	if prefix != "" {
		key = strings.TrimSuffix(prefix, "/") + "/" + key
	}
	return key
}
