package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/port"
	"github.com/garyjia/crop-guard/internal/domain/entity"
)

// ScanCallback receives the outcome of a scan started on a session
type ScanCallback func(entity.ScanResult, error)

// ScanSession ties in-flight scans to the lifetime of a screen or request.
// Once Close returns no callback fires and no late result reaches history.
// Callbacks must not call Close.
type ScanSession struct {
	svc    *ScanService
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewScanSession creates a session whose scans stop when parent is done or Close is called
func NewScanSession(parent context.Context, svc *ScanService, logger *zap.Logger) *ScanSession {
	ctx, cancel := context.WithCancel(parent)
	return &ScanSession{
		svc:    svc,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Start runs the scan in the background and reports through onDone
func (s *ScanSession) Start(in ScanInput, onDone ScanCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return port.ErrSessionClosed
	}

	s.wg.Add(1)
	go s.run(in, onDone)
	return nil
}

func (s *ScanSession) run(in ScanInput, onDone ScanCallback) {
	defer s.wg.Done()

	scan, err := s.svc.Predict(s.ctx, in)

	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.mu.Unlock()
		s.logger.Debug("Discarding scan result after session closed", zap.Error(err))
		return
	}

	var result entity.ScanResult
	if err != nil {
		result = entity.FailedScan(scan.ImageURI, scan.CropType, scan.Date)
	} else {
		result, err = s.svc.Record(s.ctx, s.svc.attachImage(s.ctx, in, scan))
	}
	s.mu.Unlock()

	if onDone != nil {
		onDone(result, err)
	}
}

// Close cancels in-flight scans and waits for their goroutines to finish
func (s *ScanSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}

// Closed reports whether Close has been called
func (s *ScanSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
