package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dsigen/internal/capture"
	"dsigen/internal/config"
	appLog "dsigen/internal/log"
	"dsigen/internal/model"
	"dsigen/internal/report"
	"dsigen/internal/web"
)

var (
	configPath string
	verbose    bool

	number         int
	refDate        string
	withCommander  bool
	withPlanning   bool
	supplementPath string
	outputPath     string
	backupDir      string
	baseURL        string

	rootCmd = &cobra.Command{
		Use:           "dsigen",
		Short:         "Generate weekly instruction directives from Google Calendar.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if verbose {
				appLog.SetLevel(appLog.LevelDebug)
			}
		},
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Create the directive document and write its backup.",
		RunE:  runGenerate,
	}

	previewCmd = &cobra.Command{
		Use:   "preview",
		Short: "Print the assembled directive as JSON without writing a document.",
		RunE:  runPreview,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write only the xlsx/CSV backup of a directive.",
		RunE:  runExport,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and API, refreshing the event cache on schedule.",
		RunE:  runServe,
	}

	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Render the HTML preview of a running server to PNG.",
		RunE:  runSnapshot,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")

	for _, c := range []*cobra.Command{generateCmd, previewCmd, exportCmd, snapshotCmd} {
		c.Flags().IntVarP(&number, "number", "n", 0, "Directive number (1-999).")
		c.Flags().StringVar(&refDate, "date", "", "Any date in week S (YYYY-MM-DD); defaults to today.")
		c.Flags().BoolVar(&withCommander, "cmt", false, "Include the commander calendar in the grid.")
		c.Flags().BoolVar(&withPlanning, "pgi", false, "Include the planning calendar in the grid.")
		_ = c.MarkFlagRequired("number")
	}
	generateCmd.Flags().StringVar(&supplementPath, "supplement", "", "JSON file with the hand-written sections.")
	generateCmd.Flags().StringVar(&backupDir, "backup-dir", ".", "Directory for the backup file.")
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Backup file path (default DSI_NNN.<ext>).")
	snapshotCmd.Flags().StringVarP(&outputPath, "output", "o", "", "PNG path (default: preview_path from config).")
	snapshotCmd.Flags().StringVar(&baseURL, "base-url", "", "Server address (default: http://<listen>).")

	rootCmd.AddCommand(generateCmd, previewCmd, exportCmd, serveCmd, snapshotCmd)
}

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer appLog.Sync()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("dsigen failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if !verbose {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}
	appLog.Debug("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"workers", cfg.Workers,
		"calendars", len(cfg.Calendars.Roles()),
		"redis", cfg.Cache.RedisAddr != "",
	)
	return cfg, nil
}

func openApp(ctx context.Context, withDocs bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, withDocs)
}

func buildRequest(cfg *config.Config) (report.Request, error) {
	ref := model.Day(time.Now().In(cfg.Location()))
	if refDate != "" {
		d, err := model.ParseDay(refDate)
		if err != nil {
			return report.Request{}, fmt.Errorf("--date %q: want YYYY-MM-DD", refDate)
		}
		ref = d
	}
	req := report.Request{
		Number:    number,
		RefDate:   ref,
		Commander: withCommander,
		Planning:  withPlanning,
	}
	if supplementPath != "" {
		data, err := os.ReadFile(supplementPath)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(data, &req.Supplement); err != nil {
			return req, fmt.Errorf("supplement %s: %w", supplementPath, err)
		}
	}
	return req, nil
}

func printWarnings(cmd *cobra.Command, warnings []model.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning [%s]: %s\n", w.Scope, w.Message)
	}
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	req, err := buildRequest(a.cfg)
	if err != nil {
		return err
	}
	res, err := a.gen.Generate(cmd.Context(), req)
	if err != nil {
		return err
	}
	printWarnings(cmd, res.Warnings)

	if len(res.Backup) > 0 {
		path := filepath.Join(backupDir, fmt.Sprintf("DSI_%s%s", res.Directive.Number, res.BackupKind.Extension()))
		if err := os.WriteFile(path, res.Backup, 0o644); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
		appLog.Info("backup written", "path", path)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.URL)
	return nil
}

func runPreview(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	req, err := buildRequest(a.cfg)
	if err != nil {
		return err
	}
	d, err := a.gen.Preview(cmd.Context(), req)
	if err != nil {
		return err
	}
	printWarnings(cmd, d.Warnings)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	req, err := buildRequest(a.cfg)
	if err != nil {
		return err
	}
	data, kind, warnings, err := a.gen.Export(cmd.Context(), req)
	if err != nil {
		return err
	}
	printWarnings(cmd, warnings)

	path := outputPath
	if path == "" {
		path = fmt.Sprintf("DSI_%s%s", report.FormatNumber(req.Number), kind.Extension())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	appLog.Info("dsigen serving", "listen", a.cfg.Listen, "refresh", a.cfg.RefreshCron)
	go a.gen.Preload(cmd.Context(), time.Now().In(a.cfg.Location()))
	return web.NewServer(a.cfg, a.gen, a.session).Run(cmd.Context())
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req, err := buildRequest(cfg)
	if err != nil {
		return err
	}

	base := baseURL
	if base == "" {
		base = "http://" + cfg.Listen
	}
	out := outputPath
	if out == "" {
		out = cfg.PreviewPath
	}
	if _, err := capture.SnapshotPreview(cmd.Context(), capture.Options{BaseURL: base, OutputPath: out}, capture.Target{
		Number:    req.Number,
		Date:      req.RefDate,
		Commander: req.Commander,
		Planning:  req.Planning,
	}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
