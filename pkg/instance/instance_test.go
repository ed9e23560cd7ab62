package instance

import "testing"

func TestGetIDPrefersExplicitEnv(t *testing.T) {
	t.Setenv("ODDFELLOW_INSTANCE_ID", "cron-worker-2")
	if got := GetID(); got != "cron-worker-2" {
		t.Fatalf("expected env id, got %q", got)
	}
}

func TestGetIDFallsBackWithoutEnv(t *testing.T) {
	t.Setenv("ODDFELLOW_INSTANCE_ID", "")
	if got := GetID(); got == "" {
		t.Fatal("expected a non-empty instance id")
	}
}
