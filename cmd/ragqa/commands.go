package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragqa/internal/backend"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/logger"
	"ragqa/internal/presenter"
	"ragqa/internal/session"
	"ragqa/internal/tui"
)

// app is the wiring shared by every command.
type app struct {
	cfg     *config.AppConfig
	log     *zap.Logger
	fetcher domain.ArtifactFetcher
	session *session.Session
	present presenter.Presenter
}

type rootFlags struct {
	configPath string
	baseURL    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	var a app

	root := &cobra.Command{
		Use:           "ragqa",
		Short:         "Ask questions about uploaded PDF documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			built, err := newApp(flags, cmd.Name() != "ragqa")
			if err != nil {
				return err
			}
			a = *built
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			m := tui.New(cmd.Context(), a.session, a.present)
			_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			a.session.Abandon()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to YAML config file (optional; uses ./ragqa.yaml or ~/.config/ragqa/config.yaml)")
	root.PersistentFlags().StringVar(&flags.baseURL, "api", "", "Backend base URL (overrides config and "+config.BaseURLEnv+")")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Also log to stderr")

	root.AddCommand(
		newDocsCmd(&a),
		newUploadCmd(&a),
		newAskCmd(&a),
		newFetchCmd(&a),
	)
	return root
}

func newApp(flags rootFlags, console bool) (*app, error) {
	var cfg *config.AppConfig
	var err error
	if flags.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(flags.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.baseURL != "" {
		cfg.API.BaseURL = strings.TrimRight(flags.baseURL, "/")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Log.Console = console && flags.verbose
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	client := backend.NewClient(backend.Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout(),
		UploadTimeout: cfg.API.UploadTimeout(),
		Logger:        logger.Module(log, "backend"),
	})
	sess := session.New(client, session.Options{
		SelectUploaded: cfg.UI.SelectsUploaded(),
		Overlap:        session.Supersede,
		Logger:         log,
	})
	log.Info("session started", zap.String("api", cfg.API.BaseURL))
	return &app{
		cfg:     cfg,
		log:     log,
		fetcher: client,
		session: sess,
		present: presenter.New(client.BaseURL()),
	}, nil
}

func newDocsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List documents known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := a.session.Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch docs: %s", domain.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No documents.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a PDF document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				a.session.Choose(domain.File{Name: filepath.Base(args[0]), Content: data})
			}
			id, err := a.session.Upload(cmd.Context())
			if err != nil {
				v := a.present.PresentUpload(a.session.Snapshot().Upload)
				if v.Failed {
					return errors.New(v.Status)
				}
				return errors.New(domain.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded: %s\n", id)
			return nil
		},
	}
}

func newAskCmd(a *app) *cobra.Command {
	var docID string
	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask a question across all documents or one document",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if docID != "" {
				if _, err := a.session.Refresh(ctx); err != nil {
					a.log.Warn("document listing failed before scoped ask", zap.Error(err))
				}
				if err := a.session.Select(domain.DocumentID(docID)); err != nil {
					return fmt.Errorf("%s: %s", domain.UserMessage(err), docID)
				}
			}
			if _, err := a.session.AskSelected(ctx, strings.Join(args, " ")); err != nil {
				if domain.KindOf(err) == domain.KindTransport {
					return errors.New(a.present.Present(a.session.Snapshot().Query).Error)
				}
				return errors.New(domain.UserMessage(err))
			}
			return writeAnswer(cmd.OutOrStdout(), a.present.Present(a.session.Snapshot().Query))
		},
	}
	cmd.Flags().StringVarP(&docID, "doc", "d", "", "Restrict the question to one document id")
	return cmd
}

func writeAnswer(w io.Writer, vm presenter.ViewModel) error {
	if _, err := fmt.Fprintf(w, "Answer:\n%s\n", vm.Answer); err != nil {
		return err
	}
	if vm.HasExcerpt {
		fmt.Fprintf(w, "\nMatched Context:\n%s\n", presenter.HighlightExcerpt(vm.Excerpt, vm.Question, nil))
	}
	if vm.HasDocument {
		fmt.Fprintf(w, "\nMatched Document: %s\n%s\n", vm.DocumentID, vm.ArtifactURL)
	}
	return nil
}

func newFetchCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "fetch DOC_ID",
		Short: "Download the original PDF behind a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.DocumentID(args[0])
			if output == "" {
				output = filepath.Base(args[0]) + ".pdf"
			}
			if output == "-" {
				_, err := a.fetcher.FetchArtifact(cmd.Context(), id, cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("failed to fetch document: %s", domain.UserMessage(err))
				}
				return nil
			}
			n, err := fetchToFile(cmd.Context(), a.fetcher, id, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d bytes) to %s\n", id, n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout (default DOC_ID.pdf)")
	return cmd
}

// fetchToFile downloads into a temp file next to path and renames it into
// place, so a failed download never leaves a partial file at path.
func fetchToFile(ctx context.Context, f domain.ArtifactFetcher, id domain.DocumentID, path string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ragqa-fetch-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := f.FetchArtifact(ctx, id, tmp)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to fetch document: %s", domain.UserMessage(err))
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	return n, nil
}
