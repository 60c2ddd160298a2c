package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snip-go/internal/app"
	"snip-go/internal/bridge"
	"snip-go/internal/config"
	"snip-go/internal/encryption"
	"snip-go/internal/tree"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config, creates a SnipApp and unlocks it if the store is
// encrypted. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "AddSnippet", "Serve").
func newApp(cmd *cobra.Command, operation string) (*app.SnipApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var opts []app.Option
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts = append(opts, app.WithLogOutput(os.Stderr), app.WithLogLevel(slog.LevelDebug))
	}

	a, err := app.NewSnipApp(cmd.Context(), cfg, operation, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	if a.Locked() {
		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := a.Unlock(pass); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "snip",
	Short:        "Text snippet expander",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Store:       %s (max item %d bytes, %s)\n", cfg.Store.Type, cfg.Store.MaxItemSize, cfg.Store.Format)
		fmt.Printf("Database:    %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Encryption:  %t\n", cfg.Encryption.Enabled)
		fmt.Printf("Hotkey:      %s\n", cfg.Engine.Hotkey)
		fmt.Printf("Suggest:     %t (trigger %q)\n", cfg.Suggest.IsEnabled(), cfg.Suggest.Trigger)
		fmt.Printf("Bridge:      %s\n", cfg.Bridge.Addr)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		pass, err := newPassphrase()
		if err != nil {
			return err
		}
		if err := enc.Setup(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		if !cfg.Encryption.Enabled {
			fmt.Println("Set encryption.enabled = true in the config to encrypt stored snippets.")
		}
		return nil
	},
}

var keysPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the key passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		old, err := readPassphrase("Current passphrase: ")
		if err != nil {
			return err
		}
		pass, err := newPassphrase()
		if err != nil {
			return err
		}
		if err := encryption.NewAgeEncryptor(cfg.Encryption).ChangePassphrase(old, pass); err != nil {
			return err
		}
		fmt.Println("Passphrase changed.")
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders and snippets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "List")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No snippets.")
			return nil
		}
		for _, e := range entries {
			indent := strings.Repeat("  ", e.Depth)
			if e.Kind == tree.KindFolder {
				fmt.Printf("%s%s/\n", indent, e.Name)
				continue
			}
			fmt.Printf("%s%-20s %s\n", indent, e.Name, preview(e.Preview, 50))
		}
		return nil
	},
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search snippet names and bodies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Search")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Search(args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-7s %-20s %-20s %s\n", app.DescribeKind(e.Kind), e.Name, app.JoinPath(e.Path), preview(e.Preview, 40))
		}
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add NAME [BODY]",
	Short: "Add a snippet; BODY is read from stdin when omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")
		rich, _ := cmd.Flags().GetBool("rich")

		body, err := bodyArg(args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "AddSnippet")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.AddSnippet(args[0], body, rich, folder); err != nil {
			return fmt.Errorf("adding snippet: %w", err)
		}
		fmt.Printf("Added snippet %s\n", args[0])
		return nil
	},
}

func bodyArg(args []string) (string, error) {
	if len(args) > 1 {
		return args[1], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

// edit command
var editCmd = &cobra.Command{
	Use:   "edit NAME [BODY]",
	Short: "Replace a snippet body; BODY is read from stdin when omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := bodyArg(args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "EditSnippet")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.EditSnippet(args[0], body); err != nil {
			return fmt.Errorf("editing snippet: %w", err)
		}
		fmt.Printf("Updated snippet %s\n", args[0])
		return nil
	},
}

// mkdir command
var mkdirCmd = &cobra.Command{
	Use:   "mkdir NAME",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")

		a, err := newApp(cmd, "AddFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.AddFolder(args[0], folder); err != nil {
			return fmt.Errorf("creating folder: %w", err)
		}
		fmt.Printf("Created folder %s\n", args[0])
		return nil
	},
}

// mv command
var mvCmd = &cobra.Command{
	Use:   "mv NAME",
	Short: "Move a snippet or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		kind, _ := cmd.Flags().GetString("kind")

		a, err := newApp(cmd, "Move")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Move(args[0], kind, to); err != nil {
			return fmt.Errorf("moving: %w", err)
		}
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Remove a snippet or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")

		a, err := newApp(cmd, "Remove")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Remove(args[0], kind); err != nil {
			return fmt.Errorf("removing: %w", err)
		}
		return nil
	},
}

// rename command
var renameCmd = &cobra.Command{
	Use:   "rename OLD NEW",
	Short: "Rename a snippet or folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")

		a, err := newApp(cmd, "Rename")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Rename(args[0], args[1], kind); err != nil {
			return fmt.Errorf("renaming: %w", err)
		}
		return nil
	},
}

// sort command
var sortCmd = &cobra.Command{
	Use:   "sort [FOLDER]",
	Short: "Sort a folder, the root by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		desc, _ := cmd.Flags().GetBool("desc")
		recursive, _ := cmd.Flags().GetBool("recursive")

		folder := ""
		if len(args) > 0 {
			folder = args[0]
		}

		a, err := newApp(cmd, "Sort")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Sort(folder, by, desc, recursive)
	},
}

// expand command
var expandCmd = &cobra.Command{
	Use:   "expand NAME",
	Short: "Print a snippet with its macros expanded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		rich, _ := cmd.Flags().GetBool("rich")
		copyOut, _ := cmd.Flags().GetBool("copy")

		a, err := newApp(cmd, "Expand")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		text, err := a.Expand(ctx, args[0], url, rich)
		if err != nil {
			return err
		}
		if copyOut {
			return a.Copy(text)
		}
		fmt.Println(text)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import snippets from an export file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		replace, _ := cmd.Flags().GetBool("replace")

		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading import: %w", err)
		}

		a, err := newApp(cmd, "Import")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Import(data, replace)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d folder(s) and %d snippet(s) (%s format)\n", res.Folders, res.Snippets, res.Format)
		for _, r := range res.Renamed {
			fmt.Printf("  renamed %s %q to %q\n", r.Kind, r.From, r.To)
		}
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all snippets",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd, "Export")
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := a.Export(format)
		if err != nil {
			return err
		}
		if output == "" || output == "-" {
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		return os.WriteFile(output, data, 0600)
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.Config().Bridge.Addr
		}

		ecfg, err := a.EngineConfig()
		if err != nil {
			return fmt.Errorf("engine config: %w", err)
		}

		srv := bridge.NewServer(a.Library(), a.Expander(), ecfg,
			bridge.WithLogger(a.Logger()),
			bridge.WithClock(a.Clock()),
			bridge.WithAllowedOrigins(a.Config().Bridge.AllowedOrigins),
			bridge.WithOnChange(func() {
				if err := a.MarkMutated(addr); err != nil {
					a.Logger().Warn("recording bridge change", "error", err)
				}
			}),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		fmt.Printf("Bridge listening on ws://%s/ws\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		saves, _ := cmd.Flags().GetBool("saves")

		a, err := newApp(cmd, "History")
		if err != nil {
			return err
		}
		defer a.Close()

		if saves {
			list, err := a.Saves(limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No saves recorded.")
				return nil
			}
			for _, s := range list {
				fmt.Printf("#%d  %s  %3d chunk(s)  %7d bytes  %s\n",
					s.ID, s.SavedAt.Format("2006-01-02 15:04:05"), s.Chunks, s.Size, s.Hash)
			}
			return nil
		}

		ops, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}
		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the history database",
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup PATH",
	Short: "Write a snapshot of the history database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "BackupDatabase")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("Database written to %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)
	keysCmd.AddCommand(keysPasswdCmd)

	// db subcommands
	dbCmd.AddCommand(dbBackupCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringP("folder", "f", "", "Folder to add the snippet to")
	addCmd.Flags().Bool("rich", false, "Treat BODY as HTML")
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(mkdirCmd)
	mkdirCmd.Flags().StringP("folder", "f", "", "Parent folder")
	rootCmd.AddCommand(mvCmd)
	mvCmd.Flags().String("to", "", "Destination folder (root when empty)")
	mvCmd.Flags().StringP("kind", "k", "snip", "Node kind: snip or folder")
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().StringP("kind", "k", "snip", "Node kind: snip or folder")
	rootCmd.AddCommand(renameCmd)
	renameCmd.Flags().StringP("kind", "k", "snip", "Node kind: snip or folder")
	rootCmd.AddCommand(sortCmd)
	sortCmd.Flags().String("by", "alphabetic", "Sort key: alphabetic or timestamp")
	sortCmd.Flags().Bool("desc", false, "Sort descending")
	sortCmd.Flags().BoolP("recursive", "r", false, "Sort subfolders too")
	rootCmd.AddCommand(expandCmd)
	expandCmd.Flags().String("url", "", "Page URL for URL macros")
	expandCmd.Flags().Bool("rich", false, "Expand the HTML source")
	expandCmd.Flags().BoolP("copy", "c", false, "Copy the result to the clipboard instead of printing it")
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Bool("replace", false, "Replace all snippets instead of merging")
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("format", "json", "Export format: json or array")
	exportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	historyCmd.Flags().Bool("saves", false, "Show saves instead of operations")
}
