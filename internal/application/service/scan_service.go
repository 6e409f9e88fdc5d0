package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/port"
	"github.com/garyjia/crop-guard/internal/domain/crop"
	"github.com/garyjia/crop-guard/internal/domain/entity"
	"github.com/garyjia/crop-guard/internal/domain/recommendation"
)

// ScanInput is one leaf photo submitted for diagnosis.
// ImageURI, when set, is recorded as-is and the image is not stored again.
type ScanInput struct {
	Image    []byte
	FileName string
	CropType entity.CropType
	ImageURI string
}

// ScanService runs the scan pipeline: predict, attach advice, record.
type ScanService struct {
	predictor port.Predictor
	history   *HistoryStore
	images    port.ImageStore
	notifier  port.Notifier
	now       func() time.Time
	logger    *zap.Logger
}

// ScanServiceOption customises a ScanService
type ScanServiceOption func(*ScanService)

// WithImageStore keeps a copy of every submitted image
func WithImageStore(images port.ImageStore) ScanServiceOption {
	return func(s *ScanService) { s.images = images }
}

// WithNotifier reports recorded scans to an alert channel
func WithNotifier(n port.Notifier) ScanServiceOption {
	return func(s *ScanService) { s.notifier = n }
}

// WithScanClock replaces time.Now
func WithScanClock(fn func() time.Time) ScanServiceOption {
	return func(s *ScanService) { s.now = fn }
}

// NewScanService creates a ScanService
func NewScanService(predictor port.Predictor, history *HistoryStore, logger *zap.Logger, opts ...ScanServiceOption) *ScanService {
	s := &ScanService{
		predictor: predictor,
		history:   history,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the store scans are recorded in
func (s *ScanService) History() *HistoryStore {
	return s.history
}

// Predict classifies the image without touching history. On failure the
// returned scan carries the "Analysis Failed" fallback alongside the error.
func (s *ScanService) Predict(ctx context.Context, in ScanInput) (entity.NewScan, error) {
	cropType := in.CropType
	if cropType == "" {
		cropType = entity.DefaultCropType
	}
	failed := entity.NewScan{
		ImageURI:  in.ImageURI,
		Diagnosis: entity.DiagnosisAnalysisFailed,
		Date:      s.now(),
		CropType:  cropType,
	}

	mimeType, err := validateImage(in.Image)
	if err != nil {
		return failed, err
	}

	model := crop.ResolveModel(cropType)
	prediction, err := s.predictor.Predict(ctx, port.PredictRequest{
		ModelName: model,
		FileName:  in.FileName,
		MimeType:  mimeType,
		Image:     in.Image,
	})
	if err != nil {
		s.logger.Error("Prediction failed",
			zap.String("model", model),
			zap.String("crop_type", cropType.String()),
			zap.Error(err))
		return failed, err
	}

	rec := entity.Recommendation{}
	if prediction.Recommendation != nil && !prediction.Recommendation.IsZero() {
		rec = *prediction.Recommendation
	} else {
		rec, _ = recommendation.LookupForCrop(prediction.Label, cropType)
	}

	return entity.NewScan{
		ImageURI:       in.ImageURI,
		Diagnosis:      prediction.Label,
		Confidence:     entity.ScaleConfidence(prediction.Confidence),
		Date:           s.now(),
		CropType:       cropType,
		Recommendation: rec,
	}, nil
}

// Record adds a successful scan to history and notifies the alert channel.
// Notification failures are logged only.
func (s *ScanService) Record(ctx context.Context, scan entity.NewScan) (entity.ScanResult, error) {
	result, err := s.history.Add(ctx, scan)
	if err != nil {
		return entity.ScanResult{}, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyScan(ctx, result); err != nil {
			s.logger.Warn("Failed to send scan notification",
				zap.String("scan_id", result.ID),
				zap.Error(err))
		}
	}
	return result, nil
}

// Analyze predicts, stores the image and records the result. When the
// prediction fails the fallback result is returned with the error, the
// image is not stored and nothing is recorded.
func (s *ScanService) Analyze(ctx context.Context, in ScanInput) (entity.ScanResult, error) {
	scan, err := s.Predict(ctx, in)
	if err != nil {
		return entity.FailedScan(scan.ImageURI, scan.CropType, scan.Date.UTC().Truncate(time.Millisecond)), err
	}
	return s.Record(ctx, s.attachImage(ctx, in, scan))
}

// FromHistory returns a past scan without calling the predictor
func (s *ScanService) FromHistory(id string) (entity.ScanResult, error) {
	scan, ok := s.history.Get(id)
	if !ok {
		return entity.ScanResult{}, fmt.Errorf("%w: scan %s", port.ErrNotFound, id)
	}
	return scan, nil
}

// attachImage archives the image of a successful scan when an image store is
// configured and the input has no URI of its own. Store failures are logged
// and the scan is kept without a URI.
func (s *ScanService) attachImage(ctx context.Context, in ScanInput, scan entity.NewScan) entity.NewScan {
	if in.ImageURI != "" || s.images == nil || len(in.Image) == 0 {
		return scan
	}
	uri, err := s.storeImage(ctx, in)
	if err != nil {
		s.logger.Warn("Failed to store scan image", zap.Error(err))
		return scan
	}
	scan.ImageURI = uri
	return scan
}

func (s *ScanService) storeImage(ctx context.Context, in ScanInput) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	ext := mimetype.Detect(in.Image).Extension()
	if ext == "" {
		ext = strings.ToLower(path.Ext(in.FileName))
	}
	name := path.Join(s.now().UTC().Format("2006-01-02"), id.String()+ext)
	return s.images.Save(ctx, name, in.Image)
}

// validateImage rejects empty input and content that is not an image
func validateImage(image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: no image supplied", port.ErrValidation)
	}
	mt := mimetype.Detect(image)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: unsupported file type %s", port.ErrValidation, mt.String())
	}
	return mt.String(), nil
}

// IsCanceled reports whether err came from a canceled or expired context
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
