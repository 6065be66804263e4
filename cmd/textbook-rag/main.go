package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"textbook-rag/internal/checkpoint"
	"textbook-rag/internal/config"
	"textbook-rag/internal/domain"
	"textbook-rag/internal/llm"
	"textbook-rag/internal/loader"
	"textbook-rag/internal/logging"
	"textbook-rag/internal/pipeline"
	"textbook-rag/internal/service"
	"textbook-rag/internal/tui"
)

type app struct {
	cfgPath  string
	logLevel string
	cfg      *config.AppConfig
	logger   *zap.Logger
}

func main() {
	_ = godotenv.Load()

	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "textbook-rag",
		Short:         "Textbook Analysis RAG System",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/textbook-rag/config.yaml if not provided)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(a.buildCmd(), a.queryCmd(), a.interactiveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	var err error
	if a.cfgPath == "" {
		a.cfg, _, err = config.LoadDefault()
	} else {
		a.cfg, err = config.Load(a.cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	a.logger, err = logging.New(a.cfg.Log.Level, a.cfg.Log.Console)
	return err
}

func (a *app) buildCmd() *cobra.Command {
	var textbooks, output string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the vector index from textbooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg

			emb, err := newEmbedder(ctx, cfg.Embedder)
			if err != nil {
				return err
			}
			ch, err := newChunker(cfg.Chunker)
			if err != nil {
				return err
			}
			ckptStore, closeCkpt, err := newCheckpointStore(ctx, cfg.Checkpoint)
			if err != nil {
				return fmt.Errorf("open checkpoints: %w", err)
			}
			defer closeCkpt()
			artifacts, err := newArtifactStore(ctx, cfg.Store)
			if err != nil {
				return fmt.Errorf("open store backend: %w", err)
			}

			svc := service.NewRAGService(service.Deps{
				Loader: func(root string) domain.TextbookLoader {
					return loader.NewPDFLoader(root, a.logger)
				},
				Chunker:     ch,
				Embedder:    buildEmbedder(emb, cfg.Pipeline.ItemTimeout()),
				Checkpoints: checkpoint.NewManager(ckptStore, a.logger),
				Pipeline: pipeline.Options{
					BatchSize:    cfg.Pipeline.BatchSize,
					SubBatchSize: cfg.Pipeline.SubBatchSize,
					Pause:        cfg.Pipeline.PauseDuration(),
					ItemTimeout:  cfg.Pipeline.ItemTimeout(),
					Progress: func(batch, total, added int) {
						fmt.Printf("Batch %d/%d: Added %d documents\n", batch+1, total, added)
					},
				},
				Artifacts: artifacts,
				Logger:    a.logger,
			})

			summary, err := svc.Build(ctx, textbooks, output)
			if err != nil {
				return err
			}
			fmt.Printf("Index built successfully and saved to %s\n", summary.Output)
			fmt.Printf("Textbooks: %d, chunks: %d, indexed: %d, dropped: %d\n",
				summary.Textbooks, summary.Chunks, summary.Indexed, summary.Dropped)
			return nil
		},
	}
	cmd.Flags().StringVar(&textbooks, "textbooks", "", "Path to the folder containing textbooks")
	cmd.Flags().StringVar(&output, "output", "index.store", "Path to save the index")
	_ = cmd.MarkFlagRequired("textbooks")
	return cmd
}

type queryFlags struct {
	index      string
	model      string
	numResults int
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.index, "index", "", "Path to the index file")
	cmd.Flags().StringVar(&f.model, "model", "", "LLM model to use (default from config)")
	cmd.Flags().IntVar(&f.numResults, "num-results", 0, "Number of results to retrieve (default from config)")
	_ = cmd.MarkFlagRequired("index")
}

// openService loads the store at f.index with a query-side embedder and
// the configured generator.
func (a *app) openService(ctx context.Context, f *queryFlags) (*service.RAGServiceImpl, int, error) {
	cfg := a.cfg
	if f.model != "" {
		cfg.LLM.Model = f.model
		if cfg.LLM.Ollama != nil {
			cfg.LLM.Ollama.Model = f.model
		}
		if cfg.LLM.OpenAI != nil {
			cfg.LLM.OpenAI.Model = f.model
		}
	}
	k := f.numResults
	if k <= 0 {
		k = cfg.Retrieval.NumResults
	}

	emb, err := newEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, 0, err
	}
	gen, err := newGenerator(cfg.LLM, a.logger)
	if err != nil {
		return nil, 0, err
	}
	artifacts, err := newArtifactStore(ctx, cfg.Store)
	if err != nil {
		return nil, 0, fmt.Errorf("open store backend: %w", err)
	}
	svc := service.NewRAGService(service.Deps{
		Embedder:  queryEmbedder(emb, cfg.Embedder, cfg.Pipeline.ItemTimeout()),
		Artifacts: artifacts,
		Generator: gen,
		Logger:    a.logger,
	})
	if err := svc.Open(ctx, f.index); err != nil {
		return nil, 0, err
	}
	return svc, k, nil
}

func (a *app) queryCmd() *cobra.Command {
	var (
		f        queryFlags
		question string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the RAG system",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, k, err := a.openService(cmd.Context(), &f)
			if err != nil {
				return err
			}
			answer, err := svc.Query(cmd.Context(), question, k)
			if err != nil {
				return err
			}
			printAnswer(answer)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&question, "question", "", "Question to ask")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func (a *app) interactiveCmd() *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Run in interactive mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, k, err := a.openService(ctx, &f)
			if err != nil {
				return err
			}
			m := tui.New(ctx, svc, k, fmt.Sprintf("Index: %s  |  Type 'exit' to quit", f.index))
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func printAnswer(a domain.Answer) {
	rule := strings.Repeat("=", 50)
	fmt.Println("\n" + rule)
	fmt.Println("Question:", a.Question)
	fmt.Println(rule)
	fmt.Println("Response:", a.Response)
	fmt.Println(rule)
	fmt.Println("\nSources:")
	fmt.Print(llm.FormatSources(a.Sources))
}
