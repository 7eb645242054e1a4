package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pkarpov/studytutor/internal/handler"
	appI18n "github.com/pkarpov/studytutor/internal/i18n"
	"github.com/pkarpov/studytutor/internal/llm"
	"github.com/pkarpov/studytutor/internal/model"
	"github.com/pkarpov/studytutor/internal/store"
	"github.com/pkarpov/studytutor/internal/tutor"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studytutor",
		Short: "Study tutor powered by LLMs: summaries, exams, and grading over uploaded material",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `studytutor --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP tutor server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "studytutor.db", "SQLite database path")
	f.String("provider", "gemini", "Generation provider (gemini, openai)")
	f.String("api-key", "", "API credential for the generation service (or set STUDYTUTOR_API_KEY)")
	f.String("model", "gemini-2.0-flash", "Model name")
	f.String("endpoint", "", "Generation service base URL (empty = provider default)")
	f.Int("max-attempts", 3, "Attempts per generation request (retries on 429 and transport failures)")
	f.IntP("num-questions", "n", 5, "Questions per generated exam")
	f.Int("num-options", 4, "Options per multiple-choice question")
	f.StringP("difficulty", "d", "", "Default exam difficulty (easy, medium, hard)")
	f.Int64("max-material-mb", 8, "Maximum upload size in MiB")
	f.Int("context-chars", tutor.DefaultContextChars, "Study-material budget inside grading prompts")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the transcript and graded results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "studytutor.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("STUDYTUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("studytutor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/studytutor")
	v.AddConfigPath("/etc/studytutor")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// A missing credential fails here, before the server starts.
	client, err := llm.New(llm.Config{
		Provider:    v.GetString("provider"),
		APIKey:      v.GetString("api-key"),
		Model:       v.GetString("model"),
		Endpoint:    v.GetString("endpoint"),
		MaxAttempts: v.GetInt("max-attempts"),
	})
	if err != nil {
		return fmt.Errorf("create generation client: %w", err)
	}

	svcCfg := tutor.Config{
		QuestionCount:    v.GetInt("num-questions"),
		OptionCount:      v.GetInt("num-options"),
		Difficulty:       model.Difficulty(v.GetString("difficulty")),
		MaxMaterialBytes: v.GetInt64("max-material-mb") << 20,
		ContextChars:     v.GetInt("context-chars"),
	}
	svc := tutor.NewService(client, db, svcCfg)

	h := handler.New(svc, svcCfg.MaxMaterialBytes)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"provider", v.GetString("provider"),
		"model", v.GetString("model"),
		"lang", lang,
		"num_questions", svcCfg.QuestionCount,
		"num_options", svcCfg.OptionCount,
		"difficulty", svcCfg.Difficulty,
		"max_material_bytes", svcCfg.MaxMaterialBytes,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.Export()
	if err != nil {
		return fmt.Errorf("export transcript: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
