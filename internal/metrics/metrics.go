package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 副作用名称
const (
	EffectPublish     = "publish"
	EffectLastMessage = "last_message"
	EffectUnread      = "unread"
)

// Metrics 服务指标
type Metrics struct {
	registry *prometheus.Registry

	MessagesCreated         *prometheus.CounterVec
	SideEffectFailures      *prometheus.CounterVec
	VoteAnswers             prometheus.Counter
	VotesClosed             prometheus.Counter
	VoteRetries             prometheus.Counter
	PresenceInstanceErrors  prometheus.Counter
	UpstreamMessagesHandled *prometheus.CounterVec
}

// New 创建并注册指标，每个实例使用独立的 Registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MessagesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talk_messages_created_total",
			Help: "Messages committed, by kind.",
		}, []string{"kind"}),
		SideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talk_side_effect_failures_total",
			Help: "Post-commit side effects that failed, by effect.",
		}, []string{"effect"}),
		VoteAnswers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "talk_vote_answers_total",
			Help: "Accepted vote submissions.",
		}),
		VotesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "talk_votes_closed_total",
			Help: "Votes closed by reaching the expected answer count.",
		}),
		VoteRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "talk_vote_retries_total",
			Help: "Vote submissions retried after a serialization failure.",
		}),
		PresenceInstanceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "talk_presence_instance_errors_total",
			Help: "Presence queries to an instance that failed or timed out.",
		}),
		UpstreamMessagesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talk_upstream_messages_total",
			Help: "Upstream messages handled, by type and result.",
		}, []string{"type", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.MessagesCreated,
		m.SideEffectFailures,
		m.VoteAnswers,
		m.VotesClosed,
		m.VoteRetries,
		m.PresenceInstanceErrors,
		m.UpstreamMessagesHandled,
	)
	return m
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
