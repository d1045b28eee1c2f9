package metrics

import (
	"github.com/jkaflik/blinds2hap/internal/blinds"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blinds2hap"

// Collector exports command, poll and position metrics per device.
type Collector struct {
	commands *prometheus.CounterVec
	polls    *prometheus.CounterVec
	position *prometheus.GaugeVec
	target   *prometheus.GaugeVec
	state    *prometheus.GaugeVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Controller commands sent, by result.",
		}, []string{"device", "command", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_polls_total",
			Help:      "Status polls, by outcome.",
		}, []string{"device", "result"}),
		position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "position",
			Help:      "Estimated position, 0=open 100=closed.",
		}, []string{"device"}),
		target: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_position",
			Help:      "Requested position, 0=open 100=closed.",
		}, []string{"device"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "motion_state",
			Help:      "0=decreasing,1=increasing,2=stopped",
		}, []string{"device"}),
	}

	reg.MustRegister(c.commands, c.polls, c.position, c.target, c.state)

	return c
}

func (c *Collector) CommandSent(device, command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.commands.WithLabelValues(device, command, result).Inc()
}

func (c *Collector) StatusPolled(device, result string) {
	c.polls.WithLabelValues(device, result).Inc()
}

// Observe keeps the position gauges of b current.
func (c *Collector) Observe(b blinds.Blinds) {
	c.set(b.Name(), b.Snapshot())
	b.OnUpdate(func(s blinds.Snapshot) {
		c.set(b.Name(), s)
	})
}

func (c *Collector) set(device string, s blinds.Snapshot) {
	c.position.WithLabelValues(device).Set(float64(s.Position))
	c.target.WithLabelValues(device).Set(float64(s.TargetPosition))
	c.state.WithLabelValues(device).Set(float64(s.State))
}
