// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	// Metrics should be enabled by default
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	// Test disabling
	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	// Test enabling
	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordOperation(t *testing.T) {
	Enable()

	// Reset counters before test
	OperationsTotal.Reset()

	// Record a successful operation
	RecordOperation(OpRegisterChallenge, StatusSuccess)

	// Verify counter incremented
	count := testutil.CollectAndCount(OperationsTotal)
	if count != 1 {
		t.Errorf("Expected 1 operation recorded, got %d", count)
	}

	// Record an error operation
	RecordOperation(OpLoginVerify, StatusError)

	// Verify counter incremented again
	count = testutil.CollectAndCount(OperationsTotal)
	if count != 2 {
		t.Errorf("Expected 2 operations recorded, got %d", count)
	}
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	// Reset counters
	OperationsTotal.Reset()

	// Record operation while disabled
	RecordOperation(OpRegisterChallenge, StatusSuccess)

	// Verify nothing was recorded
	count := testutil.CollectAndCount(OperationsTotal)
	if count != 0 {
		t.Errorf("Expected 0 operations when disabled, got %d", count)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	Enable()

	// Reset metrics
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	// Record HTTP request
	RecordHTTPRequest("POST", "200", 0.05)

	// Verify metrics recorded
	count := testutil.CollectAndCount(HTTPRequestsTotal)
	if count != 1 {
		t.Errorf("Expected 1 HTTP request recorded, got %d", count)
	}

	histCount := testutil.CollectAndCount(HTTPRequestDuration)
	if histCount != 1 {
		t.Errorf("Expected 1 HTTP histogram sample, got %d", histCount)
	}
}

func TestActiveConnections(t *testing.T) {
	Enable()

	ActiveConnections.Set(0)

	IncrementActiveConnections()
	IncrementActiveConnections()
	DecrementActiveConnections()

	value := testutil.ToFloat64(ActiveConnections)
	if value != 1 {
		t.Errorf("Expected 1 active connection, got %f", value)
	}
}

func TestOperationConstants(t *testing.T) {
	// Verify operation constants are defined
	operations := []string{
		OpRegisterChallenge, OpRegisterVerify,
		OpLoginChallenge, OpLoginVerify,
	}

	for _, op := range operations {
		if op == "" {
			t.Error("Operation constant is empty")
		}
	}
}

func TestStatusConstants(t *testing.T) {
	// Verify status constants are defined
	if StatusSuccess == "" {
		t.Error("StatusSuccess constant is empty")
	}
	if StatusError == "" {
		t.Error("StatusError constant is empty")
	}
}

func TestMetricsNamespace(t *testing.T) {
	if Namespace == "" {
		t.Error("Namespace constant is empty")
	}
	if Namespace != "passkey" {
		t.Errorf("Expected namespace 'passkey', got '%s'", Namespace)
	}
}

func TestResourceGauges(t *testing.T) {
	Enable()

	// Verify all resource gauges can be set without panicking
	Goroutines.Set(100)
	MemoryAllocBytes.Set(1024 * 1024)
	MemorySysBytes.Set(10 * 1024 * 1024)
	GCPauseTotalSeconds.Set(0.5)
	ServerUptime.Set(3600)

	// Verify gauges are collecting
	collectors := []prometheus.Collector{
		Goroutines, MemoryAllocBytes, MemorySysBytes,
		GCPauseTotalSeconds, ServerUptime,
	}

	for _, collector := range collectors {
		count := testutil.CollectAndCount(collector)
		if count == 0 {
			t.Errorf("Expected gauge %v to be collecting", collector)
		}
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	Enable()

	// Reset metrics
	OperationsTotal.Reset()

	// Concurrently record operations
	done := make(chan bool)
	operations := 100

	for i := 0; i < operations; i++ {
		go func() {
			RecordOperation(OpRegisterVerify, StatusSuccess)
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < operations; i++ {
		<-done
	}

	value := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpRegisterVerify, StatusSuccess))
	if value != float64(operations) {
		t.Errorf("Expected %d operations recorded, got %f", operations, value)
	}
}

func BenchmarkRecordOperation(b *testing.B) {
	Enable()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		RecordOperation(OpLoginVerify, StatusSuccess)
	}
}

func BenchmarkRecordHTTPRequest(b *testing.B) {
	Enable()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		RecordHTTPRequest("POST", "200", 0.001)
	}
}
