// Package metrics models the backend's metric catalog and the user's
// selection over it.
package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Sensor identifies one instrument data source.
type Sensor string

const (
	ChromeleonOffline            Sensor = "chromeleon_offline"
	ChromeleonOnline             Sensor = "chromeleon_online"
	ChromeleonOnlinePermanentGas Sensor = "chromeleon_online_permanent_gas"
	Pignat                       Sensor = "pignat"
	Resume                       Sensor = "resume"
)

// Sensors lists every category the export request must carry, in display
// order.
var Sensors = []Sensor{
	ChromeleonOffline,
	ChromeleonOnline,
	ChromeleonOnlinePermanentGas,
	Pignat,
	Resume,
}

// Kind says how a sensor's selections are shaped in the export request.
type Kind int

const (
	// Plain sensors export bare metric names.
	Plain Kind = iota
	// Elements sensors export a name plus chosen chemical elements.
	Elements
	// TimeSeries sensors export a name plus one range shared by the sensor.
	TimeSeries
)

func (s Sensor) Kind() Kind {
	switch s {
	case ChromeleonOnline, ChromeleonOnlinePermanentGas:
		return Elements
	case Pignat:
		return TimeSeries
	default:
		return Plain
	}
}

// GlobalKey is the synthetic key holding a time-series sensor's shared range.
func (s Sensor) GlobalKey() string {
	return string(s) + "-global"
}

// Key builds the selection key of the i-th metric of s.
func Key(s Sensor, i int) string {
	return fmt.Sprintf("%s-%d", s, i)
}

// ParseKey splits "<sensor>-<index>". Sensor names contain underscores but
// never hyphens.
func ParseKey(key string) (Sensor, int, bool) {
	i := strings.LastIndex(key, "-")
	if i <= 0 {
		return "", 0, false
	}
	if strings.Contains(key[:i], "-") {
		return "", 0, false
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return Sensor(key[:i]), n, true
}

// Metric is one graph the backend can produce.
type Metric struct {
	Name             string   `json:"name"`
	Available        bool     `json:"available"`
	Columns          []string `json:"columns,omitempty"`
	ChemicalElements []string `json:"chimicalElements,omitempty"`
}

// HasElements reports whether the metric offers an element sub-selection.
func (m Metric) HasElements() bool {
	return len(m.ChemicalElements) > 0
}

// SensorMetrics is either a metric list or the error the backend reported
// for that sensor.
type SensorMetrics struct {
	Metrics []Metric
	Err     string
}

// Failed reports whether the backend sent an error marker.
func (s SensorMetrics) Failed() bool {
	return s.Err != ""
}

// Available returns the metrics usable for selection; none when Failed.
func (s SensorMetrics) Available() []Metric {
	if s.Failed() {
		return nil
	}
	return s.Metrics
}

func (s *SensorMetrics) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = SensorMetrics{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var list []Metric
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = SensorMetrics{Metrics: list}
		return nil
	case len(data) > 0 && data[0] == '{':
		var marker struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &marker); err != nil {
			return err
		}
		if marker.Error == "" {
			marker.Error = "unknown sensor error"
		}
		*s = SensorMetrics{Err: marker.Error}
		return nil
	default:
		return fmt.Errorf("sensor metrics: unexpected JSON %.20q", data)
	}
}

func (s SensorMetrics) MarshalJSON() ([]byte, error) {
	if s.Failed() {
		return json.Marshal(map[string]string{"error": s.Err})
	}
	if s.Metrics == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Metrics)
}

// Catalog maps each sensor to its metrics or error marker.
type Catalog map[Sensor]SensorMetrics

// Warnings returns the error message of every failed sensor.
func (c Catalog) Warnings() map[Sensor]string {
	out := make(map[Sensor]string)
	for s, m := range c {
		if m.Failed() {
			out[s] = m.Err
		}
	}
	return out
}

// TimeAxis is the time-series axis of a sensor, sorted.
type TimeAxis struct {
	MinTime     string   `json:"min_time"`
	MaxTime     string   `json:"max_time"`
	UniqueTimes []string `json:"unique_times"`
}

// Index returns the position of t on the axis, or -1.
func (a TimeAxis) Index(t string) int {
	for i, v := range a.UniqueTimes {
		if v == t {
			return i
		}
	}
	return -1
}

// TimeRange bounds a time-series export. Empty means open-ended.
type TimeRange struct {
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

func (r TimeRange) IsZero() bool {
	return r.StartTime == "" && r.EndTime == ""
}

// ElementSelection is an exported metric with its chosen elements.
type ElementSelection struct {
	Name     string   `json:"name"`
	Elements []string `json:"chimicalElementSelected"`
}

// TimedSelection is an exported time-series metric.
type TimedSelection struct {
	Name      string     `json:"name"`
	TimeRange *TimeRange `json:"timeRange,omitempty"`
}

// Selection is the normalized export request. Every field is always a
// non-nil slice so each key is present in the JSON.
type Selection struct {
	ChromeleonOffline            []string           `json:"chromeleon_offline"`
	ChromeleonOnline             []ElementSelection `json:"chromeleon_online"`
	ChromeleonOnlinePermanentGas []ElementSelection `json:"chromeleon_online_permanent_gas"`
	Pignat                       []TimedSelection   `json:"pignat"`
	Resume                       []string           `json:"resume"`
}

// EmptySelection returns a Selection with every list allocated.
func EmptySelection() Selection {
	return Selection{
		ChromeleonOffline:            []string{},
		ChromeleonOnline:             []ElementSelection{},
		ChromeleonOnlinePermanentGas: []ElementSelection{},
		Pignat:                       []TimedSelection{},
		Resume:                       []string{},
	}
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s.ChromeleonOffline)+len(s.ChromeleonOnline)+len(s.ChromeleonOnlinePermanentGas)+
		len(s.Pignat)+len(s.Resume) == 0
}
