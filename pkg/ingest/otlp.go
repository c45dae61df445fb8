package ingest

import (
	"context"
	"fmt"
	"net"

	collectormetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	"google.golang.org/grpc"

	"github.com/polisai/semcheck/pkg/sample"
	"github.com/polisai/semcheck/pkg/semconv"
)

// Receiver ingests OTLP metric exports over gRPC and forwards the converted
// samples to a handler. The handler is invoked synchronously from gRPC
// handler goroutines; callers that feed a live checker must serialize.
type Receiver struct {
	collectormetricspb.UnimplementedMetricsServiceServer

	handle func(sample.Sample)
	server *grpc.Server
}

// NewReceiver builds a receiver that forwards every converted sample to handle.
func NewReceiver(handle func(sample.Sample)) *Receiver {
	r := &Receiver{
		handle: handle,
		server: grpc.NewServer(),
	}
	collectormetricspb.RegisterMetricsServiceServer(r.server, r)
	return r
}

// ListenAndServe serves the OTLP metrics service on addr until Stop.
func (r *Receiver) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return r.Serve(lis)
}

// Serve serves the OTLP metrics service on the given listener.
func (r *Receiver) Serve(lis net.Listener) error {
	return r.server.Serve(lis)
}

// Stop drains in-flight exports and stops the server.
func (r *Receiver) Stop() {
	r.server.GracefulStop()
}

// Export implements the OTLP collector metrics service.
func (r *Receiver) Export(_ context.Context, req *collectormetricspb.ExportMetricsServiceRequest) (*collectormetricspb.ExportMetricsServiceResponse, error) {
	for _, s := range SamplesFromExport(req) {
		r.handle(s)
	}
	return &collectormetricspb.ExportMetricsServiceResponse{}, nil
}

// SamplesFromExport flattens an OTLP export request into checkable samples:
// resource attributes become attribute samples, each metric becomes a metric
// sample with its data points.
func SamplesFromExport(req *collectormetricspb.ExportMetricsServiceRequest) []sample.Sample {
	var samples []sample.Sample
	for _, rm := range req.GetResourceMetrics() {
		for _, kv := range rm.GetResource().GetAttributes() {
			samples = append(samples, attributeSample(kv))
		}
		for _, sm := range rm.GetScopeMetrics() {
			for _, metric := range sm.GetMetrics() {
				samples = append(samples, metricSample(metric))
			}
		}
	}
	return samples
}

func attributeSample(kv *commonpb.KeyValue) *sample.Attribute {
	value := anyValue(kv.GetValue())
	return &sample.Attribute{
		Name:  kv.GetKey(),
		Value: value,
		Type:  sample.InferType(value),
	}
}

func metricSample(metric *metricspb.Metric) *sample.Metric {
	converted := &sample.Metric{
		Name: metric.GetName(),
		Unit: metric.GetUnit(),
	}

	switch data := metric.GetData().(type) {
	case *metricspb.Metric_Sum:
		if data.Sum.GetIsMonotonic() {
			converted.Instrument = sample.SupportedInstrument(semconv.InstrumentCounter)
		} else {
			converted.Instrument = sample.SupportedInstrument(semconv.InstrumentUpDownCounter)
		}
		for _, point := range data.Sum.GetDataPoints() {
			converted.DataPoints = append(converted.DataPoints, numberDataPoint(point))
		}
	case *metricspb.Metric_Gauge:
		converted.Instrument = sample.SupportedInstrument(semconv.InstrumentGauge)
		for _, point := range data.Gauge.GetDataPoints() {
			converted.DataPoints = append(converted.DataPoints, numberDataPoint(point))
		}
	case *metricspb.Metric_Histogram:
		converted.Instrument = sample.SupportedInstrument(semconv.InstrumentHistogram)
		for _, point := range data.Histogram.GetDataPoints() {
			converted.DataPoints = append(converted.DataPoints, histogramDataPoint(point))
		}
	case *metricspb.Metric_ExponentialHistogram:
		converted.Instrument = sample.UnsupportedInstrument("exponential_histogram")
	case *metricspb.Metric_Summary:
		converted.Instrument = sample.UnsupportedInstrument("summary")
	default:
		converted.Instrument = sample.UnsupportedInstrument("unspecified")
	}

	return converted
}

func numberDataPoint(point *metricspb.NumberDataPoint) *sample.NumberDataPoint {
	var value float64
	switch v := point.GetValue().(type) {
	case *metricspb.NumberDataPoint_AsDouble:
		value = v.AsDouble
	case *metricspb.NumberDataPoint_AsInt:
		value = float64(v.AsInt)
	}
	return &sample.NumberDataPoint{
		Value:      value,
		Attributes: attributeSet(point.GetAttributes()),
	}
}

func histogramDataPoint(point *metricspb.HistogramDataPoint) *sample.HistogramDataPoint {
	return &sample.HistogramDataPoint{
		Count:      point.GetCount(),
		Sum:        point.GetSum(),
		Attributes: attributeSet(point.GetAttributes()),
	}
}

func attributeSet(kvs []*commonpb.KeyValue) []sample.Attribute {
	attrs := make([]sample.Attribute, 0, len(kvs))
	for _, kv := range kvs {
		attrs = append(attrs, *attributeSample(kv))
	}
	return attrs
}

func anyValue(value *commonpb.AnyValue) any {
	switch v := value.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return v.StringValue
	case *commonpb.AnyValue_BoolValue:
		return v.BoolValue
	case *commonpb.AnyValue_IntValue:
		return v.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return v.DoubleValue
	case *commonpb.AnyValue_ArrayValue:
		values := make([]any, 0, len(v.ArrayValue.GetValues()))
		for _, item := range v.ArrayValue.GetValues() {
			values = append(values, anyValue(item))
		}
		return values
	case *commonpb.AnyValue_KvlistValue:
		values := make(map[string]any, len(v.KvlistValue.GetValues()))
		for _, item := range v.KvlistValue.GetValues() {
			values[item.GetKey()] = anyValue(item.GetValue())
		}
		return values
	case *commonpb.AnyValue_BytesValue:
		return v.BytesValue
	default:
		return nil
	}
}
