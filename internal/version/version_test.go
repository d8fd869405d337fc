package version

import "testing"

func TestGet_Defaults(t *testing.T) {
	vi := Get()
	if vi.AppName != AppName {
		t.Fatalf("AppName = %q, want %q", vi.AppName, AppName)
	}
	if vi.Version == "" {
		t.Fatal("Version should never be empty")
	}
}

func TestGet_AppVersionEnvOverride(t *testing.T) {
	t.Setenv("APP_VERSION", "2.3.4")
	vi := Get()
	if vi.Version != "2.3.4" {
		t.Fatalf("Version = %q, want env override '2.3.4'", vi.Version)
	}
}

func TestGet_EmptyEnvIgnored(t *testing.T) {
	t.Setenv("APP_VERSION", "")
	vi := Get()
	if vi.Version == "" {
		t.Fatal("empty APP_VERSION must not blank the version")
	}
}
