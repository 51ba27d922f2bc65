package analytics

import "sync"

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP"

// StepDataCollector receives one record per evaluated submission.
type StepDataCollector interface {
	RecordStepAccepted(wfName string, userId string, step string, next string, metrics map[string]any)
	RecordStepRejected(wfName string, userId string, step string, reason string)
}

var (
	mu            sync.RWMutex
	stepCollector StepDataCollector = noopCollector{}
)

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		SetCollector(c)
	default:
		SetCollector(noopCollector{})
	}
	return nil
}

func SetCollector(c StepDataCollector) {
	mu.Lock()
	defer mu.Unlock()
	stepCollector = c
}

func collector() StepDataCollector {
	mu.RLock()
	defer mu.RUnlock()
	return stepCollector
}

func RecordStepAccepted(wfName string, userId string, step string, next string, metrics map[string]any) {
	collector().RecordStepAccepted(wfName, userId, step, next, metrics)
}

func RecordStepRejected(wfName string, userId string, step string, reason string) {
	collector().RecordStepRejected(wfName, userId, step, reason)
}

type noopCollector struct{}

func (noopCollector) RecordStepAccepted(string, string, string, string, map[string]any) {}
func (noopCollector) RecordStepRejected(string, string, string, string)                 {}
