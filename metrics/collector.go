// irimager - camera sessions for radiometric thermal imagers
//  Copyright (C) 2026, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package metrics exports the sessions in a registry to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TheCacophonyProject/irimager/session"
)

const namespace = "irimager"

// Collector reads session statistics at scrape time. Sessions that come
// and go between scrapes need no registration.
type Collector struct {
	registry *session.Registry

	fetched     *prometheus.Desc
	delivered   *prometheus.Desc
	dropped     *prometheus.Desc
	throttled   *prometheus.Desc
	fetchErrors *prometheus.Desc
	connected   *prometheus.Desc
	mean        *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(r *session.Registry) *Collector {
	labels := []string{"camera"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "session", name), help, labels, nil)
	}
	return &Collector{
		registry:    r,
		fetched:     desc("frames_fetched_total", "Frames read from the camera since it connected."),
		delivered:   desc("frames_delivered_total", "Frames handed to the consumer since the camera connected."),
		dropped:     desc("frames_dropped_total", "Frames replaced before the consumer took them."),
		throttled:   desc("frames_throttled_total", "Frames refused by the throttle."),
		fetchErrors: desc("fetch_errors_total", "Failed frame fetches."),
		connected:   desc("connected", "1 while the session is acquiring frames."),
		mean:        desc("mean_temperature_celsius", "Mean temperature of the latest frame."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fetched
	ch <- c.delivered
	ch <- c.dropped
	ch <- c.throttled
	ch <- c.fetchErrors
	ch <- c.connected
	ch <- c.mean
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, h := range c.registry.Handles() {
		s, err := c.registry.Get(h)
		if err != nil {
			// Disconnected since Handles was called.
			continue
		}
		camera := strconv.FormatUint(uint64(h), 10)
		st := s.Stats()
		counter := func(d *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), camera)
		}
		counter(c.fetched, st.Fetched)
		counter(c.delivered, st.Delivered)
		counter(c.dropped, st.Dropped)
		counter(c.throttled, st.Throttled)
		counter(c.fetchErrors, st.FetchErrors)

		connected := 0.0
		if s.State() == session.Connected {
			connected = 1
		}
		ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected, camera)

		if f, _ := s.Latest(); f != nil {
			ch <- prometheus.MustNewConstMetric(c.mean, prometheus.GaugeValue, f.MeanTemperature(), camera)
		}
	}
}
