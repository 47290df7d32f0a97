package domain

import "time"

// TimestampLayout is the wall-clock layout used in the persisted metadata.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultHistoryLimit caps ExecutionHistory when no explicit limit is configured.
const DefaultHistoryLimit = 10

// RunSummary describes a single execution in the persisted history.
type RunSummary struct {
	Timestamp string `json:"timestamp"`
	Found     int    `json:"articles_found"`
	New       int    `json:"new_articles"`
}

// WatermarkState is the change-detection state carried between runs.
type WatermarkState struct {
	LastDateValue int          `json:"last_date_value"`
	LastRun       string       `json:"last_run"`
	TotalSeen     int          `json:"total_articles_found"`
	TotalNew      int          `json:"total_new_articles"`
	History       []RunSummary `json:"execution_history"`
	SourceURL     string       `json:"source_url"`
}

// NewWatermarkState returns the state of a source that was never checked.
func NewWatermarkState(sourceURL string, now time.Time) WatermarkState {
	return WatermarkState{
		LastDateValue: 0,
		LastRun:       now.Format(TimestampLayout),
		History:       []RunSummary{},
		SourceURL:     sourceURL,
	}
}

// Advance folds one run into the state and returns the result; s is left untouched.
// The watermark only moves forward, so a page that drops its newest entry
// cannot make already-notified bulletins look new again.
func (s WatermarkState) Advance(all, fresh []Bulletin, now time.Time, historyLimit int) WatermarkState {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	next := s
	if highest, ok := MaxDateValue(all); ok && highest > next.LastDateValue {
		next.LastDateValue = highest
	}

	stamp := now.Format(TimestampLayout)
	next.LastRun = stamp
	next.TotalSeen += len(all)
	next.TotalNew += len(fresh)

	history := make([]RunSummary, 0, min(len(s.History)+1, historyLimit))
	history = append(history, RunSummary{Timestamp: stamp, Found: len(all), New: len(fresh)})
	for _, entry := range s.History {
		if len(history) == historyLimit {
			break
		}
		history = append(history, entry)
	}
	next.History = history

	return next
}
