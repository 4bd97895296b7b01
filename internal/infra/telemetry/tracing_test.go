package telemetry

import "testing"

func TestExporterOptions(t *testing.T) {
	opts, err := ExporterOptions("http://collector:4318/v1/traces")
	if err != nil {
		t.Fatalf("ExporterOptions returned error: %v", err)
	}
	// endpoint, timeout, insecure, path
	if len(opts) != 4 {
		t.Fatalf("expected 4 options, got %d", len(opts))
	}

	opts, err = ExporterOptions("https://collector.example.com")
	if err != nil {
		t.Fatalf("ExporterOptions returned error: %v", err)
	}
	if len(opts) != 2 {
		t.Fatalf("expected 2 options for https without path, got %d", len(opts))
	}

	if _, err := ExporterOptions("collector:4318"); err == nil {
		t.Fatal("expected error for endpoint without scheme")
	}
}
