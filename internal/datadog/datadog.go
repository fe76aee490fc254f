package datadog

import (
	"strconv"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/array-controller/internal/model"
)

var dogstatsd *statsd.Client

type Settings struct {
	Enabled   bool
	AgentAddr string
	Namespace string
	Tags      []string
}

func InitMetrics(s Settings) {
	if !s.Enabled {
		log.Info().Msg("Datadog metrics disabled")
		return
	}
	var err error
	dogstatsd, err = statsd.New(s.AgentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return
	}

	dogstatsd.Namespace = s.Namespace
	dogstatsd.Tags = s.Tags

	log.Info().
		Str("addr", s.AgentAddr).
		Str("namespace", s.Namespace).
		Strs("tags", s.Tags).
		Msg("Datadog metrics initialized")
}

// Close flushes and releases the client.
func Close() {
	if dogstatsd != nil {
		if err := dogstatsd.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close DogStatsD client")
		}
		dogstatsd = nil
	}
}

func Gauge(name string, value float64, tags ...string) {
	if dogstatsd != nil {
		err := dogstatsd.Gauge(name, value, tags, 1)
		if err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
		}
	}
}

func Incr(name string, tags ...string) {
	if dogstatsd != nil {
		err := dogstatsd.Incr(name, tags, 1)
		if err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit count metric")
		}
	}
}

// RecordReadings emits one voltage gauge per reading plus an out-of-range
// count.
func RecordReadings(readings []model.Reading) {
	for _, r := range readings {
		tags := []string{"battery:" + strconv.Itoa(int(r.Battery)), "kind:" + string(r.Kind)}
		Gauge("battery.voltage", r.Volts, tags...)
		Gauge("battery.adc_raw", float64(r.Raw), tags...)
		if !r.InRange {
			Incr("battery.out_of_range", tags...)
		}
	}
}

func RecordSwitch(ev model.SwitchEvent) {
	tags := []string{"to:" + string(ev.To)}
	if ev.Err != "" {
		Incr("switch.fault", tags...)
		return
	}
	Incr("switch.applied", tags...)
	Gauge("switch.duration_us", float64(ev.Duration.Microseconds()), tags...)
}
