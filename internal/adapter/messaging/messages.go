package messaging

import (
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

const (
	ActionAnalyze         = "analyze"
	ActionAnalysisResult  = "analysisResult"
	ActionAnalysisFailure = "analysisError"
)

// AnalysisRequest asks a worker to analyse a piece of content. It is the
// browser extension's {action, type, content} message.
type AnalysisRequest struct {
	RequestID string `json:"requestId,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	Action    string `json:"action" validate:"required,eq=analyze"`
	Type      string `json:"type" validate:"required,oneof=text url image"`
	Content   string `json:"content" validate:"required"`
	FileName  string `json:"fileName,omitempty" validate:"required_if=Type image"`
}

// AnalysisEvent is published for every fresh analysis.
type AnalysisEvent struct {
	Action  string                `json:"action"`
	Type    domain.InputKind      `json:"type"`
	Content string                `json:"content"`
	Result  domain.AnalysisRecord `json:"result"`
	Tier    domain.RiskTier       `json:"riskTier"`
}

// NewAnalysisEvent wraps a record. Image records carry the file name as
// content, so pixels never travel on the bus.
func NewAnalysisEvent(rec domain.AnalysisRecord) AnalysisEvent {
	return AnalysisEvent{
		Action:  ActionAnalysisResult,
		Type:    rec.Kind,
		Content: rec.Content,
		Result:  rec,
		Tier:    rec.Tier(),
	}
}

// AnalysisFailureEvent tells the requester that a queued analysis could not
// be completed. Error is the same client-facing message the REST API returns.
type AnalysisFailureEvent struct {
	Action    string `json:"action"`
	RequestID string `json:"requestId,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	Type      string `json:"type"`
	Error     string `json:"error"`
}

func NewAnalysisFailureEvent(req AnalysisRequest, reason string) AnalysisFailureEvent {
	return AnalysisFailureEvent{
		Action:    ActionAnalysisFailure,
		RequestID: req.RequestID,
		ClientID:  req.ClientID,
		Type:      req.Type,
		Error:     reason,
	}
}

// RoutingKey picks the routing key for a completed analysis.
func RoutingKey(rec domain.AnalysisRecord) string {
	if rec.Verdict.IsFraudulent {
		return RoutingKeyFraudDetected
	}
	return RoutingKeyAnalysisCompleted
}
