package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/backend"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keymapfile"
)

var keymapLayer int

var keymapCmd = &cobra.Command{
	Use:   "keymap",
	Short: "Read and change key bindings",
	Long: `Read and change the scancode bound to each key on each layer, and move whole
keymaps in and out of keymap files.`,
}

var keymapGetCmd = &cobra.Command{
	Use:   "get [KEY]",
	Short: "Show key bindings",
	Long: `Print the bindings of one key on every layer, or of every key when no key
is given.

Examples:
  keyboard-configurator keymap get
  keyboard-configurator keymap get CAPS`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKeymapGet,
}

var keymapSetCmd = &cobra.Command{
	Use:   "set KEY SCANCODE",
	Short: "Bind a key on one layer",
	Long: `Bind KEY to SCANCODE on the layer given with --layer. SCANCODE is a name
such as ESC or a number such as 0x0029.

Examples:
  keyboard-configurator keymap set CAPS ESC
  keyboard-configurator keymap set --layer 1 ESC 0x0029`,
	Args: cobra.ExactArgs(2),
	RunE: runKeymapSet,
}

var keymapExportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write the board's keymap and lighting to a keymap file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runKeymapExport,
}

var keymapImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Apply a keymap file to the board",
	Long: `Apply every statement of a keymap file in order. The first failing
statement stops the import; statements before it stay applied.`,
	Args: cobra.ExactArgs(1),
	RunE: runKeymapImport,
}

func init() {
	rootCmd.AddCommand(keymapCmd)
	keymapCmd.AddCommand(keymapGetCmd)
	keymapCmd.AddCommand(keymapSetCmd)
	keymapCmd.AddCommand(keymapExportCmd)
	keymapCmd.AddCommand(keymapImportCmd)

	keymapSetCmd.Flags().IntVarP(&keymapLayer, "layer", "l", 0, "layer to change")
}

func runKeymapGet(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board()
	if err != nil {
		return err
	}

	keys := b.Keys()
	if len(args) == 1 {
		k, ok := b.KeyByName(args[0])
		if !ok {
			return fmt.Errorf("unknown key %q", args[0])
		}
		keys = []*backend.Key{k}
	}

	fmt.Printf("Keymap of %s [%s], %d layer(s):\n", b.DisplayName(), b.ID(), len(b.Layers()))
	for _, k := range keys {
		names := make([]string, 0, len(b.Layers()))
		for _, code := range k.Scancodes() {
			names = append(names, s.keymap.Name(code))
		}
		fmt.Printf("  %-14s %s\n", k.Name, strings.Join(names, " "))
	}
	return nil
}

func runKeymapSet(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board()
	if err != nil {
		return err
	}
	k, ok := b.KeyByName(args[0])
	if !ok {
		return fmt.Errorf("unknown key %q", args[0])
	}
	code, err := s.keymap.Parse(args[1])
	if err != nil {
		return err
	}
	if err := b.SetScancode(k, keymapLayer, code); err != nil {
		return err
	}

	fmt.Printf("%s on layer %d: %s\n", k.Name, keymapLayer, s.keymap.Name(code))
	return nil
}

func runKeymapExport(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return keymapfile.Export(os.Stdout, b, s.keymap)
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("create keymap file: %w", err)
	}
	if err := keymapfile.Export(f, b, s.keymap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write keymap file: %w", err)
	}
	fmt.Printf("Exported %s [%s] to %s\n", b.DisplayName(), b.ID(), args[0])
	return nil
}

func runKeymapImport(cmd *cobra.Command, args []string) error {
	file, err := keymapfile.ParseFile(args[0])
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board()
	if err != nil {
		return err
	}
	if err := keymapfile.Apply(b, file, s.keymap); err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}

	statements := 0
	for _, layer := range file.Layers {
		statements += len(layer.Statements)
	}
	fmt.Printf("Applied %d statement(s) from %s to %s [%s]\n", statements, args[0], b.DisplayName(), b.ID())
	return nil
}
