package domain

import "time"

// DefaultHistoryLimit is how many past analyses a session keeps.
const DefaultHistoryLimit = 50

// History is a fixed-capacity list of analyses. Once full, adding an entry
// evicts the oldest one. It is not safe for concurrent use.
type History struct {
	entries []AnalysisRecord
	start   int
	size    int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{entries: make([]AnalysisRecord, limit)}
}

func (h *History) Add(rec AnalysisRecord) {
	limit := len(h.entries)
	if h.size < limit {
		h.entries[(h.start+h.size)%limit] = rec
		h.size++
		return
	}
	h.entries[h.start] = rec
	h.start = (h.start + 1) % limit
}

// Entries returns the stored analyses, newest first.
func (h *History) Entries() []AnalysisRecord {
	out := make([]AnalysisRecord, h.size)
	limit := len(h.entries)
	for i := 0; i < h.size; i++ {
		out[i] = h.entries[(h.start+h.size-1-i)%limit]
	}
	return out
}

func (h *History) Len() int {
	return h.size
}

func (h *History) Cap() int {
	return len(h.entries)
}

func (h *History) Clear() {
	h.entries = make([]AnalysisRecord, len(h.entries))
	h.start, h.size = 0, 0
}

// Session is the per-client state the popup used to keep in globals: how many
// analyses were run, what was analysed last and the history list.
type Session struct {
	ClientID       string
	AnalysisCount  int
	LastKind       InputKind
	LastTier       RiskTier
	LastAnalyzedAt time.Time
	History        *History
}

func NewSession(clientID string, historyLimit int) *Session {
	return &Session{
		ClientID: clientID,
		History:  NewHistory(historyLimit),
	}
}

// Record folds a completed analysis into the session.
func (s *Session) Record(rec AnalysisRecord) {
	s.AnalysisCount++
	s.LastKind = rec.Kind
	s.LastTier = rec.Tier()
	s.LastAnalyzedAt = rec.AnalyzedAt
	s.History.Add(rec)
}

// Snapshot is a copy of the session that is safe to hand out.
type Snapshot struct {
	ClientID       string           `json:"clientId"`
	AnalysisCount  int              `json:"analysisCount"`
	LastKind       InputKind        `json:"lastType,omitempty"`
	LastTier       RiskTier         `json:"lastRiskTier,omitempty"`
	LastAnalyzedAt time.Time        `json:"lastAnalyzedAt,omitempty"`
	History        []AnalysisRecord `json:"history"`
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ClientID:       s.ClientID,
		AnalysisCount:  s.AnalysisCount,
		LastKind:       s.LastKind,
		LastTier:       s.LastTier,
		LastAnalyzedAt: s.LastAnalyzedAt,
		History:        s.History.Entries(),
	}
}
