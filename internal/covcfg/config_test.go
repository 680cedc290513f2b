package covcfg

import "testing"

func TestConfig_ValidateThreshold(t *testing.T) {
	cfg := Config{DMissThreshold: -3}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for threshold below -2")
	}

	for _, th := range []int{-2, -1, 0, 1, 100} {
		cfg := Config{DMissThreshold: th}
		if err := cfg.Validate(); err != nil {
			t.Errorf("threshold %d should be valid, got %v", th, err)
		}
	}
}

func TestConfig_ValidateBackendConflict(t *testing.T) {
	cfg := Config{Backend: BackendMonitoring, HostMonitoring: false}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error requesting monitoring backend on a host without one")
	}

	cfg.HostMonitoring = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_ResolveBackendAuto(t *testing.T) {
	cfg := Config{Backend: BackendAuto, HostMonitoring: true}
	if got := cfg.ResolveBackend(); got != BackendMonitoring {
		t.Errorf("expected BackendMonitoring, got %v", got)
	}

	cfg.HostMonitoring = false
	if got := cfg.ResolveBackend(); got != BackendBytecode {
		t.Errorf("expected BackendBytecode, got %v", got)
	}
}

func TestConfig_Filter(t *testing.T) {
	cfg := Config{}
	if !cfg.Filter("anything.py") {
		t.Error("nil SourceFilter should track everything")
	}

	cfg.SourceFilter = func(f string) bool { return f != "excluded.py" }
	if cfg.Filter("excluded.py") {
		t.Error("excluded.py should be filtered out")
	}
	if !cfg.Filter("included.py") {
		t.Error("included.py should be tracked")
	}
}
