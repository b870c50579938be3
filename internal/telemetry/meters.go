package telemetry

import "go.opentelemetry.io/otel/metric"

type (
	CounterType    string
	GaugeFloatType string
)

const (
	SamplesRecordedCounterName CounterType = "host_metrics.samples.recorded"
	SamplesFailedCounterName   CounterType = "host_metrics.samples.failed"
)

const (
	CPUUsageGaugeName    GaugeFloatType = "host_metrics.cpu.used"
	MemoryUsageGaugeName GaugeFloatType = "host_metrics.memory.used"
	DiskUsageGaugeName   GaugeFloatType = "host_metrics.disk.used"
)

var counterDesc = map[CounterType]string{
	SamplesRecordedCounterName: "Number of samples persisted by the recorder.",
	SamplesFailedCounterName:   "Number of recorder cycles that did not persist a sample.",
}

var counterUnits = map[CounterType]string{
	SamplesRecordedCounterName: "{sample}",
	SamplesFailedCounterName:   "{cycle}",
}

var gaugeFloatDesc = map[GaugeFloatType]string{
	CPUUsageGaugeName:    "CPU utilization of the last recorded sample.",
	MemoryUsageGaugeName: "Memory utilization of the last recorded sample.",
	DiskUsageGaugeName:   "Disk utilization of the last recorded sample.",
}

func GetCounter(meter metric.Meter, name CounterType) (metric.Int64Counter, error) {
	desc := counterDesc[name]
	unit := counterUnits[name]

	return meter.Int64Counter(string(name),
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
}

func GetGaugeFloat(meter metric.Meter, name GaugeFloatType, callback metric.Float64Callback) (metric.Float64ObservableGauge, error) {
	desc := gaugeFloatDesc[name]

	return meter.Float64ObservableGauge(string(name),
		metric.WithDescription(desc),
		metric.WithUnit("%"),
		metric.WithFloat64Callback(callback),
	)
}
