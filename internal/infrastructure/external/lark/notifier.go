// Package lark posts disease alerts to a Lark/Feishu group chat.
package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/domain/entity"
)

// NotifierConfig selects the chat and the confidence needed to alert
type NotifierConfig struct {
	ChatID        string
	MinConfidence int
}

// ScanAlertNotifier implements port.Notifier. Healthy and failed scans and
// scans under the confidence threshold are ignored.
type ScanAlertNotifier struct {
	sender MessageSender
	cfg    NotifierConfig
	logger *zap.Logger
}

// NewScanAlertNotifier creates a notifier that sends through sender
func NewScanAlertNotifier(sender MessageSender, cfg NotifierConfig, logger *zap.Logger) *ScanAlertNotifier {
	return &ScanAlertNotifier{sender: sender, cfg: cfg, logger: logger}
}

// ShouldNotify reports whether scan warrants an alert
func (n *ScanAlertNotifier) ShouldNotify(scan entity.ScanResult) bool {
	if scan.Failed() || scan.IsHealthy() {
		return false
	}
	return scan.Confidence >= n.cfg.MinConfidence
}

// NotifyScan posts an interactive card describing a detected disease
func (n *ScanAlertNotifier) NotifyScan(ctx context.Context, scan entity.ScanResult) error {
	if !n.ShouldNotify(scan) {
		return nil
	}
	if n.cfg.ChatID == "" {
		return fmt.Errorf("lark chat id is not configured")
	}

	card, err := json.Marshal(buildAlertCard(scan))
	if err != nil {
		return fmt.Errorf("failed to marshal alert card: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, "chat_id", n.cfg.ChatID, "interactive", string(card))
	if err != nil {
		return fmt.Errorf("failed to send disease alert: %w", err)
	}

	n.logger.Info("Disease alert sent",
		zap.String("scan_id", scan.ID),
		zap.String("diagnosis", scan.Diagnosis),
		zap.String("message_id", messageID))
	return nil
}

func buildAlertCard(scan entity.ScanResult) map[string]interface{} {
	lines := []string{
		fmt.Sprintf("**Crop:** %s", scan.CropType),
		fmt.Sprintf("**Diagnosis:** %s", scan.Diagnosis),
		fmt.Sprintf("**Confidence:** %d%% (%s)", scan.Confidence, scan.ConfidenceBand()),
		fmt.Sprintf("**Scanned:** %s", scan.Date.UTC().Format("2006-01-02 15:04 MST")),
	}
	if r := scan.Recommendation; r.Treatment != "" {
		lines = append(lines, fmt.Sprintf("**Treatment:** %s", r.Treatment))
	}
	if r := scan.Recommendation; r.Prevention != "" {
		lines = append(lines, fmt.Sprintf("**Prevention:** %s", r.Prevention))
	}

	template := "orange"
	if scan.ConfidenceBand() == entity.ConfidenceBandHigh {
		template = "red"
	}

	return map[string]interface{}{
		"config": map[string]interface{}{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"template": template,
			"title": map[string]interface{}{
				"tag":     "plain_text",
				"content": fmt.Sprintf("Crop disease detected: %s", scan.Diagnosis),
			},
		},
		"elements": []interface{}{
			map[string]interface{}{
				"tag": "div",
				"text": map[string]interface{}{
					"tag":     "lark_md",
					"content": strings.Join(lines, "\n"),
				},
			},
		},
	}
}
