package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// resetFlags puts every flag of every command back to its default so flags
// do not accumulate between runs.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns what it printed to
// stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// Read in background to prevent pipe buffer from blocking
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(done)
	}()

	viper.Reset()
	resetFlags(rootCmd)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := rootCmd.Execute()

	// Restore stdout and wait for reader
	w.Close()
	os.Stdout = old
	<-done

	return buf.String(), err
}

type e2eCase struct {
	name        string
	args        []string
	wantErr     bool
	wantContain []string
}

func runCases(t *testing.T, tests []e2eCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, tt.args...)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none\nOutput: %s", output)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

const launch = "system76/launch_1"

// TestBoardsE2E tests board listing end-to-end
func TestBoardsE2E(t *testing.T) {
	runCases(t, []e2eCase{
		{
			name: "one dummy board",
			args: []string{"--dummy", launch, "boards"},
			wantContain: []string{
				"Found 1 board(s)",
				"[0] Launch (system76/launch_1) firmware dummy",
			},
		},
		{
			name: "two dummy boards verbose",
			args: []string{"--dummy", launch, "--dummy", "system76/launch_lite_1", "-v", "boards"},
			wantContain: []string{
				"Found 2 board(s)",
				"[1] Launch Lite",
				"Layers:        4",
				"Per-key color: false",
			},
		},
		{
			name:        "no boards",
			args:        []string{"--daemon-kind", "dummy", "boards"},
			wantContain: []string{"No boards found."},
		},
		{
			name:        "unknown model is skipped",
			args:        []string{"--dummy", "acme/mystery", "boards"},
			wantContain: []string{"No boards found."},
		},
		{
			name:    "bad daemon kind",
			args:    []string{"--daemon-kind", "teleport", "boards"},
			wantErr: true,
		},
	})
}

// TestLayoutE2E tests the layout and models commands end-to-end
func TestLayoutE2E(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tiny.json")
	if err := os.WriteFile(file, []byte(`[{"name":"Tiny"},["A",{"w":2},"B"],["C"]]`), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	broken := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(broken, []byte(`[["A", 7]]`), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	runCases(t, []e2eCase{
		{
			name:        "models",
			args:        []string{"models"},
			wantContain: []string{"Known models:", "system76/launch_1", "Launch Lite"},
		},
		{
			name: "model by id",
			args: []string{"layout", launch},
			wantContain: []string{
				"Launch (system76/launch_1): 82 keys",
				"ESC",
				"row  0 col  0",
			},
		},
		{
			name:        "model by display name",
			args:        []string{"layout", "launch lite"},
			wantContain: []string{"Launch Lite (system76/launch_lite_1)"},
		},
		{
			name: "file",
			args: []string{"layout", file},
			wantContain: []string{
				"Tiny: 3 keys in 2 rows",
				"w= 2.00",
				"row  1 col  0",
			},
		},
		{
			name:        "yaml",
			args:        []string{"layout", file, "--yaml"},
			wantContain: []string{"name: Tiny", "name: B", "background: '#cccccc'"},
		},
		{
			name:        "selected board",
			args:        []string{"--dummy", "system76/launch_lite_1", "layout"},
			wantContain: []string{"Launch Lite (system76/launch_lite_1)"},
		},
		{
			name:    "unknown model",
			args:    []string{"layout", "acme/mystery"},
			wantErr: true,
		},
		{
			name:    "malformed file",
			args:    []string{"layout", broken},
			wantErr: true,
		},
	})
}

// TestKeymapE2E tests the keymap commands end-to-end
func TestKeymapE2E(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "swap.keymap")
	if err := os.WriteFile(script, []byte("layer 0 {\n  map CAPS -> ESC\n  map ESC -> CAPS\n}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	bad := filepath.Join(dir, "bad.keymap")
	if err := os.WriteFile(bad, []byte("layer 9 {\n  map CAPS -> ESC\n}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	exported := filepath.Join(dir, "out.keymap")

	runCases(t, []e2eCase{
		{
			name:        "get one key",
			args:        []string{"--dummy", launch, "keymap", "get", "ESC"},
			wantContain: []string{"Keymap of Launch [0], 4 layer(s)", "ESC", "NONE NONE NONE NONE"},
		},
		{
			name:        "get all keys",
			args:        []string{"--dummy", launch, "keymap", "get"},
			wantContain: []string{"BKSP", "PGDN"},
		},
		{
			name:        "set by name",
			args:        []string{"--dummy", launch, "keymap", "set", "CAPS", "ESC"},
			wantContain: []string{"CAPS on layer 0: ESC"},
		},
		{
			name:        "set by number on layer 2",
			args:        []string{"--dummy", launch, "keymap", "set", "--layer", "2", "ESC", "0x0039"},
			wantContain: []string{"ESC on layer 2: CAPS"},
		},
		{
			name:    "set on missing layer",
			args:    []string{"--dummy", launch, "keymap", "set", "--layer", "7", "ESC", "CAPS"},
			wantErr: true,
		},
		{
			name:    "set unknown scancode",
			args:    []string{"--dummy", launch, "keymap", "set", "ESC", "WARP"},
			wantErr: true,
		},
		{
			name:    "unknown board",
			args:    []string{"--dummy", launch, "--board", "5", "keymap", "get"},
			wantErr: true,
		},
		{
			name:        "export to stdout",
			args:        []string{"--dummy", launch, "keymap", "export"},
			wantContain: []string{"// Launch (system76/launch_1), firmware dummy", "layer 3 {", "map ESC -> NONE"},
		},
		{
			name:        "export to file",
			args:        []string{"--dummy", launch, "keymap", "export", exported},
			wantContain: []string{"Exported Launch [0] to " + exported},
		},
		{
			name:        "import",
			args:        []string{"--dummy", launch, "keymap", "import", script},
			wantContain: []string{"Applied 2 statement(s)"},
		},
		{
			name:    "import failing statement",
			args:    []string{"--dummy", launch, "keymap", "import", bad},
			wantErr: true,
		},
	})

	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if !strings.Contains(string(data), "layer 0 {") {
		t.Errorf("exported file missing layer block:\n%s", data)
	}
}

// TestLedE2E tests the lighting commands end-to-end
func TestLedE2E(t *testing.T) {
	runCases(t, []e2eCase{
		{
			name:        "set color",
			args:        []string{"--dummy", launch, "led", "color", "0", "#FF8000"},
			wantContain: []string{"Layer 0 color: #ff8000"},
		},
		{
			name:    "bad color",
			args:    []string{"--dummy", launch, "led", "color", "0", "orange"},
			wantErr: true,
		},
		{
			name:        "set key color",
			args:        []string{"--dummy", launch, "led", "key-color", "ESC", "00ff00"},
			wantContain: []string{"ESC color: #00ff00"},
		},
		{
			name:    "key color without per-key lighting",
			args:    []string{"--dummy", "system76/launch_lite_1", "led", "key-color", "ESC", "00ff00"},
			wantErr: true,
		},
		{
			name:        "set brightness",
			args:        []string{"--dummy", launch, "led", "brightness", "1", "200"},
			wantContain: []string{"Layer 1 brightness: 200/255"},
		},
		{
			name:    "brightness out of range",
			args:    []string{"--dummy", launch, "led", "brightness", "1", "300"},
			wantErr: true,
		},
		{
			name:        "set mode with speed",
			args:        []string{"--dummy", launch, "led", "mode", "1", "CYCLE_SPIRAL", "--speed", "9"},
			wantContain: []string{"Layer 1 mode: Spiral Galaxy (CYCLE_SPIRAL), speed 9"},
		},
		{
			name:        "set mode by index",
			args:        []string{"--dummy", launch, "led", "mode", "2", "13"},
			wantContain: []string{"Active Keys (ACTIVE_KEYS)"},
		},
		{
			name:    "unknown mode",
			args:    []string{"--dummy", launch, "led", "mode", "1", "STROBE"},
			wantErr: true,
		},
		{
			name:    "missing layer",
			args:    []string{"--dummy", launch, "led", "color", "4"},
			wantErr: true,
		},
		{
			name:        "modes",
			args:        []string{"led", "modes"},
			wantContain: []string{"SOLID_COLOR", "14  DISABLED"},
		},
		{
			name:        "save",
			args:        []string{"--dummy", launch, "led", "save"},
			wantContain: []string{"Saved lighting of Launch [0]"},
		},
		{
			name:        "matrix",
			args:        []string{"--dummy", launch, "matrix"},
			wantContain: []string{"Pressed: none"},
		},
	})
}

// TestConfigE2E tests the config commands end-to-end
func TestConfigE2E(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	custom := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(custom, []byte("daemon: dummy\ndummy_boards: [system76/launch_lite_1]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	runCases(t, []e2eCase{
		{
			name:        "init",
			args:        []string{"config", "init", path},
			wantContain: []string{"Wrote default configuration to " + path},
		},
		{
			name:    "init refuses to overwrite",
			args:    []string{"config", "init", path},
			wantErr: true,
		},
		{
			name:        "init with force",
			args:        []string{"config", "init", "--force", path},
			wantContain: []string{"Wrote default configuration"},
		},
		{
			name:        "show yaml",
			args:        []string{"--config", path, "config", "show"},
			wantContain: []string{"# " + path, "daemon: auto", "refresh_interval: 1s", "- pkexec"},
		},
		{
			name:        "show json with flag override",
			args:        []string{"--config", path, "--log-level", "debug", "config", "show", "--format", "json"},
			wantContain: []string{`"log_level": "debug"`, `"listen": "127.0.0.1:8076"`},
		},
		{
			name:    "show unknown format",
			args:    []string{"config", "show", "--format", "toml"},
			wantErr: true,
		},
		{
			name:    "missing config file",
			args:    []string{"--config", filepath.Join(dir, "nope.yaml"), "config", "show"},
			wantErr: true,
		},
		{
			name:        "boards from config file",
			args:        []string{"--config", custom, "boards"},
			wantContain: []string{"[0] Launch Lite"},
		},
	})
}
