package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rupor-github/gencfg"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
document:
  output_name_template: "{{.Title}}"
  file_name_transliterate: true
  images:
    inline: false
    max_width: 1200
    jpeg_quality_level: 85
  toc:
    untitled_label: "(untitled)"
logging:
  console:
    level: normal
  file:
    level: debug
    destination: /tmp/test.log
    mode: append
reporting:
  destination: /tmp/test-report.zip
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}

	if cfg.Document.OutputNameTemplate != "{{.Title}}" {
		t.Errorf("OutputNameTemplate = %q, want template untouched", cfg.Document.OutputNameTemplate)
	}

	if !cfg.Document.FileNameTransliterate {
		t.Error("Expected FileNameTransliterate to be true")
	}

	if cfg.Document.Images.Inline {
		t.Error("Expected Inline to be false from config file")
	}

	if cfg.Document.Images.MaxWidth != 1200 {
		t.Errorf("MaxWidth = %d, want 1200", cfg.Document.Images.MaxWidth)
	}

	if cfg.Document.Images.JPEGQuality != 85 {
		t.Errorf("JPEGQuality = %d, want 85", cfg.Document.Images.JPEGQuality)
	}

	if cfg.Document.TOC.UntitledLabel != "(untitled)" {
		t.Errorf("UntitledLabel = %q, want (untitled)", cfg.Document.TOC.UntitledLabel)
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	_, err := LoadConfiguration("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `version: 1
document:
  file_name_transliterate: true
  invalid indent
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadConfiguration_UnknownFields(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "unknown.yaml")

	configWithUnknown := `version: 1
unknown_field: value
document:
  file_name_transliterate: true
`

	if err := os.WriteFile(configPath, []byte(configWithUnknown), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected error for unknown fields")
	}
}

func TestLoadConfiguration_ValidationError(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_values.yaml")

	// Invalid version number
	configWithInvalidVersion := `version: 2
document:
  file_name_transliterate: true
`

	if err := os.WriteFile(configPath, []byte(configWithInvalidVersion), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected validation error for invalid version")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestLoadConfiguration_MergeWithDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.yaml")

	// Partial config that only overrides some values
	partialConfig := `version: 1
document:
  images:
    inline: false
`

	if err := os.WriteFile(configPath, []byte(partialConfig), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	// Check that explicitly set value is used
	if cfg.Document.Images.Inline {
		t.Error("Expected Inline to be false from config file")
	}

	// Check that default values are still present for unspecified fields
	if cfg.Document.TOC.UntitledLabel == "" {
		t.Error("UntitledLabel should have default value")
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if !cfg.Document.Images.Inline {
		t.Error("Expected Inline to be true by default")
	}

	if cfg.Document.Images.MaxWidth < 0 {
		t.Error("MaxWidth should not be negative")
	}

	if cfg.Document.Images.JPEGQuality < 40 || cfg.Document.Images.JPEGQuality > 100 {
		t.Errorf("JPEGQuality = %d, should be between 40 and 100", cfg.Document.Images.JPEGQuality)
	}

	if cfg.Document.TOC.UntitledLabel == "" {
		t.Error("UntitledLabel should have a default")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("Prepare() returned empty data")
	}

	// Verify it's valid YAML by trying to unmarshal
	cfg := &Config{}
	_, err = unmarshalConfig(data, cfg, true)
	if err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Document: DocumentConfig{
			FileNameTransliterate: true,
			Images: ImagesConfig{
				Inline:      true,
				MaxWidth:    800,
				JPEGQuality: 80,
			},
			TOC: TOCConfig{
				UntitledLabel: "Untitled",
			},
		},
	}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("Dump() returned empty data")
	}

	// Verify we can load it back
	cfg2 := &Config{}
	_, err = unmarshalConfig(data, cfg2, false)
	if err != nil {
		t.Errorf("Dumped config cannot be loaded: %v", err)
	}

	if cfg2.Version != cfg.Version {
		t.Errorf("Version mismatch after dump/load: got %d, want %d", cfg2.Version, cfg.Version)
	}

	if cfg2.Document.Images.MaxWidth != cfg.Document.Images.MaxWidth {
		t.Errorf("MaxWidth mismatch after dump/load: got %d, want %d", cfg2.Document.Images.MaxWidth, cfg.Document.Images.MaxWidth)
	}
}

func TestUnmarshalConfig(t *testing.T) {
	t.Run("valid config without processing", func(t *testing.T) {
		data := []byte(`version: 1`)
		cfg := &Config{}

		result, err := unmarshalConfig(data, cfg, false)
		if err != nil {
			t.Errorf("unmarshalConfig() error = %v", err)
		}

		if result == nil {
			t.Fatal("unmarshalConfig() returned nil")
		}

		if result.Version != 1 {
			t.Errorf("Version = %d, want 1", result.Version)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		data := []byte(`invalid: [yaml`)
		cfg := &Config{}

		_, err := unmarshalConfig(data, cfg, false)
		if err == nil {
			t.Error("Expected error for invalid YAML")
		}
	})
}

func TestOutputFmt_String(t *testing.T) {
	tests := []struct {
		fmt      OutputFmt
		expected string
	}{
		{OutputFmtText, "text"},
		{OutputFmtHtml, "html"},
		{OutputFmt(99), "OutputFmt(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := tt.fmt.String()
			if got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseOutputFmt(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  OutputFmt
		shouldErr bool
	}{
		{"text lowercase", "text", OutputFmtText, false},
		{"TEXT uppercase", "TEXT", OutputFmtText, false},
		{"html", "html", OutputFmtHtml, false},
		{"invalid", "invalid", OutputFmt(0), true},
		{"empty", "", OutputFmt(0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutputFmt(tt.input)
			if tt.shouldErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if got != tt.expected {
					t.Errorf("ParseOutputFmt(%q) = %v, want %v", tt.input, got, tt.expected)
				}
			}
		})
	}
}

func TestOutputFmtNames(t *testing.T) {
	names := OutputFmtNames()
	expected := []string{"text", "html"}

	if len(names) != len(expected) {
		t.Fatalf("OutputFmtNames() length = %d, want %d", len(names), len(expected))
	}

	for i, name := range expected {
		if names[i] != name {
			t.Errorf("OutputFmtNames()[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestOutputFmt_Ext(t *testing.T) {
	tests := []struct {
		fmt      OutputFmt
		expected string
	}{
		{OutputFmtText, ".txt"},
		{OutputFmtHtml, ".html"},
	}

	for _, tt := range tests {
		t.Run(tt.fmt.String(), func(t *testing.T) {
			got := tt.fmt.Ext()
			if got != tt.expected {
				t.Errorf("Ext() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOutputFmt_Ext_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Ext() should panic for invalid format")
		}
	}()
	invalidFmt := OutputFmt(99)
	invalidFmt.Ext()
}
