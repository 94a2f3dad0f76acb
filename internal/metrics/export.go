package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultEndpoint is the push gateway on the loopback interface.
const DefaultEndpoint = "http://localhost:9091"

// PushExporter sends the registry to a Prometheus push gateway. All exports
// of one process share an instance grouping key, so each push replaces the
// previous one with the updated process-wide totals.
type PushExporter struct {
	endpoint string
	job      string
	instance string
	client   *http.Client
}

// NewPushExporter creates an exporter for the push gateway at endpoint.
func NewPushExporter(endpoint, job string) *PushExporter {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &PushExporter{
		endpoint: endpoint,
		job:      job,
		instance: uuid.NewString(),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Endpoint returns the push gateway URL.
func (p *PushExporter) Endpoint() string {
	return p.endpoint
}

// Export pushes g to the gateway.
func (p *PushExporter) Export(ctx context.Context, g prometheus.Gatherer) error {
	return push.New(p.endpoint, p.job).
		Gatherer(g).
		Grouping("instance", p.instance).
		Client(p.client).
		PushContext(ctx)
}
