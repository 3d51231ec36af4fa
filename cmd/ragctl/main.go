// Command ragctl wires the full tourism RAG pipeline together for local
// use: "ragctl ingest <file.pdf>..." indexes documents, and
// "ragctl query <session_id> <utterance>" runs one turn of the query
// pipeline and prints the resulting answer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"turag/internal/config"
	"turag/internal/logging"
	"turag/internal/pdfextract"
	"turag/internal/persistence/vector"
	"turag/internal/rag/answer"
	"turag/internal/rag/chunker"
	"turag/internal/rag/embedder"
	"turag/internal/rag/entity"
	"turag/internal/rag/enrich"
	"turag/internal/rag/expand"
	"turag/internal/rag/ingest"
	"turag/internal/rag/obs"
	"turag/internal/rag/retrieve"
	"turag/internal/rag/rewrite"
	"turag/internal/rag/selfquery"
	"turag/internal/llm/providers"
	"turag/internal/session"
	"turag/internal/rag/service"
)

func main() {
	_ = godotenv.Overload()
	logging.Log.Info("ragctl starting")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ragctl <ingest|query> ...")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownMetrics, err := obs.Setup(ctx, cfg.Otel)
	if err != nil {
		logging.Log.WithError(err).Warn("metrics export disabled")
		shutdownMetrics = func(context.Context) error { return nil }
	}
	defer shutdownMetrics(ctx)

	svc, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build service: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	switch os.Args[1] {
	case "ingest":
		runIngest(ctx, svc, os.Args[2:])
	case "query":
		runQuery(ctx, svc, os.Args[2:])
	case "session":
		runSession(ctx, svc, os.Args[2:])
	case "sweep":
		runSweep(ctx, svc, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func runSession(ctx context.Context, svc *service.Service, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ragctl session <new|reset <id>|filters <id>>")
		os.Exit(2)
	}
	switch args[0] {
	case "new":
		id, err := svc.CreateSession(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create session: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(id)
	case "reset":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: ragctl session reset <id>")
			os.Exit(2)
		}
		if err := svc.ResetSession(ctx, args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "reset session: %v\n", err)
			os.Exit(1)
		}
	case "filters":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: ragctl session filters <id>")
			os.Exit(2)
		}
		view, err := svc.ActiveFilters(ctx, args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "active filters: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(view)
	default:
		fmt.Fprintf(os.Stderr, "unknown session action %q\n", args[0])
		os.Exit(2)
	}
}

func runSweep(ctx context.Context, svc *service.Service, cfg config.Config) {
	idle := cfg.Session.IdleTimeout
	if idle <= 0 {
		idle = session.IdleTimeout
	}
	n, err := svc.SweepIdleSessions(ctx, time.Now().Add(-idle))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d idle sessions removed\n", n)
}

func runIngest(ctx context.Context, svc *service.Service, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	fs.Parse(args)
	for _, path := range fs.Args() {
		res, err := svc.Ingest(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest %s: %v\n", path, err)
			continue
		}
		fmt.Printf("%s: %d chunks indexed, %d failed\n", res.SourceDoc, len(res.ChunkIDs), res.ChunksFailed)
	}
}

func runQuery(ctx context.Context, svc *service.Service, args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	stream := fs.Bool("stream", false, "stream the answer token by token")
	fs.Parse(args)
	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: ragctl query [-stream] <session_id> <utterance>")
		os.Exit(2)
	}
	sessionID := fs.Arg(0)
	utterance := strings.Join(fs.Args()[1:], " ")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *stream {
		err := svc.QueryStream(ctx, sessionID, utterance, service.UserClient, func(ev answer.StreamEvent) error {
			if ev.Complete {
				fmt.Println()
				return enc.Encode(ev.Answer)
			}
			fmt.Print(ev.Delta)
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "query: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ans, err := svc.Query(ctx, sessionID, utterance, service.UserClient)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}
	_ = enc.Encode(ans)
}

// buildService assembles a Service from cfg, choosing backends the way
// config.Load's values indicate: Qdrant for vectors whenever QDRANT_DSN is
// set, Postgres for sessions (and for vectors when QDRANT_DSN is unset) when
// POSTGRES_DSN is set, Redis for the session lock when REDIS_ADDR is set, and otherwise
// file-backed sessions, an in-memory vector store, and an in-process lock
// so ragctl runs standalone for local experimentation.
func buildService(ctx context.Context, cfg config.Config) (*service.Service, func(), error) {
	httpClient := http.DefaultClient
	provider, err := providers.Build(ctx, cfg, httpClient)
	if err != nil {
		return nil, nil, err
	}

	var emb embedder.Embedder
	if cfg.Embedding.APIKey != "" {
		emb = embedder.NewClient(cfg.Embedding, cfg.Embedding.Dimension)
	} else {
		// No embedding credentials: fall back to the deterministic
		// embedder so ingest/query remain exercisable locally.
		emb = embedder.NewDeterministic(cfg.Embedding.Dimension, true, 0)
	}

	var pgPool *pgxpool.Pool
	if cfg.Postgres.DSN != "" {
		pgCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres config: %w", err)
		}
		if cfg.Postgres.MaxConns > 0 {
			pgCfg.MaxConns = cfg.Postgres.MaxConns
		}
		if cfg.Postgres.MaxIdleTime > 0 {
			pgCfg.MaxConnIdleTime = time.Duration(cfg.Postgres.MaxIdleTime) * time.Minute
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, pgCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
	}

	var vecStore vector.Store
	switch {
	case cfg.Qdrant.DSN != "":
		vecStore, err = vector.NewQdrantStore(cfg.Qdrant.DSN, cfg.Qdrant.Collection, cfg.Qdrant.Dimension, cfg.Qdrant.Metric)
		if err != nil {
			return nil, nil, fmt.Errorf("qdrant store: %w", err)
		}
	case pgPool != nil:
		vecStore, err = vector.NewPostgresStore(ctx, pgPool, cfg.Embedding.Dimension)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres vector store: %w", err)
		}
	default:
		vecStore = vector.NewMemoryStore(cfg.Embedding.Dimension)
	}

	var sessStore session.Store
	if pgPool != nil {
		sessStore, err = session.NewPostgresStore(ctx, pgPool)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres session store: %w", err)
		}
	} else {
		sessionDir := os.Getenv("SESSION_DIR")
		if sessionDir == "" {
			sessionDir = "./sessions"
		}
		sessStore, err = session.NewFileStore(sessionDir)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: %w", err)
		}
	}

	var lock session.Lock
	if cfg.Redis.Addr != "" {
		lock, err = session.NewRedisLock(cfg.Redis, cfg.Session.LockTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis lock: %w", err)
		}
	} else {
		lock = session.NewInProcessLock()
	}

	model := cfg.LLM.OpenAI.Model
	switch cfg.LLM.Provider {
	case "anthropic":
		model = cfg.LLM.Anthropic.Model
	case "google":
		model = cfg.LLM.Google.Model
	}

	if b := cfg.PDF.Backend; b != "" && b != "ledongthuc" {
		return nil, nil, fmt.Errorf("unsupported pdf backend %q", b)
	}
	extractor := pdfextract.New()
	enricher := enrich.New(provider, model)
	indexer := ingest.New(extractor, chunker.Options{MaxTokens: cfg.Chunking.MaxTokens, Overlap: cfg.Chunking.Overlap}, enricher, emb, vecStore)

	weights := retrieve.Weights{
		OverfetchFactor:      cfg.Retrieval.OverfetchFactor,
		FallbackThreshold:    cfg.Retrieval.FallbackThreshold,
		PriceOvershootWeight: cfg.Retrieval.PriceOvershootWeight,
		MonthAdjacentWeight:  cfg.Retrieval.MonthAdjacentWeight,
		MonthFarWeight:       cfg.Retrieval.MonthFarWeight,
		DurationWeight:       cfg.Retrieval.DurationWeight,
		CategoryWeight:       cfg.Retrieval.CategoryWeight,
		FamilyConflictWeight: cfg.Retrieval.FamilyConflictWeight,
	}

	svc := service.New(service.Deps{
		Sessions:    sessStore,
		Lock:        lock,
		Rewriter:    rewrite.New(provider, model),
		Extractor:   entity.New(provider, model),
		SelfQuery:   selfquery.New(provider, model),
		Expander:    expand.New(provider, model, 50000),
		Retriever:   retrieve.New(vecStore, weights),
		Synthesizer: answer.New(provider, model),
		Embedder:    emb,
		Indexer:     indexer,
		RingSize:    cfg.Session.RingSize,
		DefaultK:    cfg.Retrieval.DefaultK,
		Log:         obs.NewLogrusLogger(),
		Metrics:     obs.NewOtelMetrics(),
	})

	cleanup := func() {
		if pgPool != nil {
			pgPool.Close()
		}
	}
	return svc, cleanup, nil
}
