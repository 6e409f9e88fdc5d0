package port

import (
	"context"

	"github.com/garyjia/crop-guard/internal/domain/entity"
)

// PredictRequest is one image submitted for classification
type PredictRequest struct {
	ModelName string
	FileName  string
	MimeType  string
	Image     []byte
}

// Prediction is the decoded classifier response. Confidence is the raw [0,1]
// probability; Recommendation is nil when the backend sent none.
type Prediction struct {
	Model          string
	Label          string
	Confidence     float64
	Recommendation *entity.Recommendation
}

// Predictor classifies a leaf image
type Predictor interface {
	Predict(ctx context.Context, req PredictRequest) (*Prediction, error)
}

// Notifier is told about finished scans, e.g. to alert a cooperative chat
type Notifier interface {
	NotifyScan(ctx context.Context, scan entity.ScanResult) error
}
