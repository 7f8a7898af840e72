package driver

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"editguard/pkg/guard"
)

type noopDriver struct{}

func (noopDriver) Name() string { return "noop" }

func (noopDriver) Start(ctx context.Context, _ guard.EventSink) error {
	<-ctx.Done()
	return ctx.Err()
}

func (noopDriver) Shutdown(context.Context) error { return nil }

func staticBuilder(runtime Runtime, err error) BuilderFunc {
	return func(context.Context, Definition, *slog.Logger) (Runtime, error) {
		return runtime, err
	}
}

func testDescriptor(driverType string) Descriptor {
	return Descriptor{
		Type:     driverType,
		Platform: guard.PlatformTelegram,
		Builder:  staticBuilder(Runtime{Driver: noopDriver{}}, nil),
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name        string
		descriptors []Descriptor
		wantErr     string
	}{
		{
			name:        "valid",
			descriptors: []Descriptor{testDescriptor("telegram")},
		},
		{
			name:        "empty type",
			descriptors: []Descriptor{testDescriptor("")},
			wantErr:     "empty descriptor type",
		},
		{
			name: "empty platform",
			descriptors: []Descriptor{{
				Type:    "telegram",
				Builder: staticBuilder(Runtime{}, nil),
			}},
			wantErr: "empty platform",
		},
		{
			name: "nil builder",
			descriptors: []Descriptor{{
				Type:     "telegram",
				Platform: guard.PlatformTelegram,
			}},
			wantErr: "nil builder",
		},
		{
			name: "duplicate type",
			descriptors: []Descriptor{
				testDescriptor("telegram"),
				testDescriptor("telegram"),
			},
			wantErr: "duplicate",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			registry, err := NewRegistry(testCase.descriptors)
			if testCase.wantErr == "" {
				if err != nil {
					t.Fatalf("new registry: %v", err)
				}
				if registry == nil {
					t.Fatalf("expected registry")
				}
				return
			}

			if err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
				t.Fatalf("error = %v, want %q", err, testCase.wantErr)
			}
		})
	}
}

func TestRegistryTypesSorted(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry([]Descriptor{
		testDescriptor("telegram"),
		testDescriptor("discord"),
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	types := registry.Types()
	if len(types) != 2 || types[0] != "discord" || types[1] != "telegram" {
		t.Fatalf("types = %v, want sorted [discord telegram]", types)
	}
}

func TestRegistryPlatformForType(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry([]Descriptor{testDescriptor("telegram")})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	platform, err := registry.PlatformForType("telegram")
	if err != nil {
		t.Fatalf("platform for type: %v", err)
	}
	if platform != guard.PlatformTelegram {
		t.Fatalf("platform = %s, want telegram", platform)
	}

	if _, err := registry.PlatformForType("matrix"); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestBuildEnabled(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry([]Descriptor{testDescriptor("telegram")})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	definitions := []Definition{
		{Name: "primary", Type: "telegram", Enabled: true},
		{Name: "secondary", Type: "telegram", Enabled: false},
	}

	runtimes, err := registry.BuildEnabled(context.Background(), definitions, slog.Default())
	if err != nil {
		t.Fatalf("build enabled: %v", err)
	}
	if len(runtimes) != 1 {
		t.Fatalf("len(runtimes) = %d, want disabled definitions skipped", len(runtimes))
	}
	if runtimes[0].Platform != guard.PlatformTelegram {
		t.Fatalf("platform = %s, want default from descriptor", runtimes[0].Platform)
	}
}

func TestBuildEnabledValidation(t *testing.T) {
	tests := []struct {
		name        string
		descriptors []Descriptor
		definitions []Definition
		wantErr     string
	}{
		{
			name:        "empty name",
			descriptors: []Descriptor{testDescriptor("telegram")},
			definitions: []Definition{{Type: "telegram", Enabled: true}},
			wantErr:     "empty name",
		},
		{
			name:        "duplicate name",
			descriptors: []Descriptor{testDescriptor("telegram")},
			definitions: []Definition{
				{Name: "primary", Type: "telegram", Enabled: true},
				{Name: "primary", Type: "telegram", Enabled: true},
			},
			wantErr: "duplicate name",
		},
		{
			name:        "unsupported type",
			descriptors: []Descriptor{testDescriptor("telegram")},
			definitions: []Definition{{Name: "primary", Type: "matrix", Enabled: true}},
			wantErr:     "unsupported type",
		},
		{
			name: "nil driver from builder",
			descriptors: []Descriptor{{
				Type:     "telegram",
				Platform: guard.PlatformTelegram,
				Builder:  staticBuilder(Runtime{}, nil),
			}},
			definitions: []Definition{{Name: "primary", Type: "telegram", Enabled: true}},
			wantErr:     "nil driver",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			registry, err := NewRegistry(testCase.descriptors)
			if err != nil {
				t.Fatalf("new registry: %v", err)
			}

			_, err = registry.BuildEnabled(context.Background(), testCase.definitions, slog.Default())
			if err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
				t.Fatalf("error = %v, want %q", err, testCase.wantErr)
			}
		})
	}
}
