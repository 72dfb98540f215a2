package services

// Pipeline outcomes reported to PipelineMetrics.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// PipelineMetrics receives pipeline events. observability.Pipeline implements
// it with Prometheus collectors.
type PipelineMetrics interface {
	IngestionFinished(status string, chunks int)
	ChatTurn(outcome string)
	StreamedToken(provider string)
}

type noopMetrics struct{}

func (noopMetrics) IngestionFinished(string, int) {}
func (noopMetrics) ChatTurn(string)               {}
func (noopMetrics) StreamedToken(string)          {}

func metricsOrNoop(m PipelineMetrics) PipelineMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
