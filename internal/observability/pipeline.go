package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the Prometheus collectors of the ingestion and chat
// pipeline. It satisfies services.PipelineMetrics, and Observe can be passed
// to the embedder as its round-trip observer.
type Pipeline struct {
	reg prometheus.Registerer

	ingestions    *prometheus.CounterVec
	chunksIndexed prometheus.Counter
	embedSeconds  *prometheus.HistogramVec
	chatTurns     *prometheus.CounterVec
	streamTokens  *prometheus.CounterVec
}

// NewPipeline registers the pipeline collectors on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		reg: reg,
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_ingestions_total",
			Help: "Document ingestion runs by final status.",
		}, []string{"status"}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_chunks_indexed_total",
			Help: "Chunks written by successful ingestion runs.",
		}),
		embedSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rag_embed_duration_seconds",
			Help:    "Embedding provider round-trip latency.",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_chat_turns_total",
			Help: "Chat turns by outcome.",
		}, []string{"outcome"}),
		streamTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_stream_tokens_total",
			Help: "Generated fragments relayed to clients, by provider.",
		}, []string{"provider"}),
	}
	reg.MustRegister(p.ingestions, p.chunksIndexed, p.embedSeconds, p.chatTurns, p.streamTokens)
	return p
}

// IngestionFinished counts one ingestion run. chunks is added to the indexed
// total only for runs that stored them.
func (p *Pipeline) IngestionFinished(status string, chunks int) {
	p.ingestions.WithLabelValues(status).Inc()
	if chunks > 0 {
		p.chunksIndexed.Add(float64(chunks))
	}
}

func (p *Pipeline) ChatTurn(outcome string) { p.chatTurns.WithLabelValues(outcome).Inc() }

func (p *Pipeline) StreamedToken(provider string) {
	p.streamTokens.WithLabelValues(provider).Inc()
}

// Observe records one embedding round-trip.
func (p *Pipeline) Observe(op string, d time.Duration) {
	p.embedSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// WatchEmbeddingCache exports size as rag_embedding_cache_entries, sampled
// on every scrape.
func (p *Pipeline) WatchEmbeddingCache(size func() int) {
	p.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rag_embedding_cache_entries",
		Help: "Vectors held in the embedding LRU cache.",
	}, func() float64 { return float64(size()) }))
}
