// Package service orchestrates the full query and ingestion control
// flow: session load, context-aware rewriting, entity extraction and
// merge, self-query parsing, query expansion, retrieval, answer
// synthesis, and a single end-of-request session commit; and, on the
// ingestion side, extraction through vector-store upsert.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"turag/internal/rag/answer"
	"turag/internal/rag/embedder"
	"turag/internal/rag/entity"
	"turag/internal/rag/expand"
	"turag/internal/rag/ingest"
	"turag/internal/rag/retrieve"
	"turag/internal/rag/rewrite"
	"turag/internal/rag/selfquery"
	"turag/internal/ragmodel"
	"turag/internal/session"
)

// UserType distinguishes a consumer chat-bubble caller from an agent
// dashboard caller. Both run the same pipeline.
type UserType string

const (
	UserClient UserType = "client"
	UserAgent  UserType = "agent"
)

// Service ties every query-pipeline stage package and the session store
// together behind the two primary operations, Query and Ingest.
type Service struct {
	sessions session.Store
	lock     session.Lock

	rewriter    *rewrite.Rewriter
	extractor   *entity.Extractor
	selfQuery   *selfquery.Parser
	expander    *expand.Expander
	retriever   *retrieve.Retriever
	synthesizer *answer.Synthesizer
	embedder    embedder.Embedder
	indexer     *ingest.Indexer

	ringSize int
	defaultK int

	clock   Clock
	log     Logger
	metrics Metrics
}

// Deps bundles Service's constructor dependencies.
type Deps struct {
	Sessions    session.Store
	Lock        session.Lock
	Rewriter    *rewrite.Rewriter
	Extractor   *entity.Extractor
	SelfQuery   *selfquery.Parser
	Expander    *expand.Expander
	Retriever   *retrieve.Retriever
	Synthesizer *answer.Synthesizer
	Embedder    embedder.Embedder
	Indexer     *ingest.Indexer
	RingSize    int
	DefaultK    int
	Clock       Clock
	Log         Logger
	Metrics     Metrics
}

// New builds a Service, defaulting Clock/Log/Metrics when not supplied.
func New(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Metrics == nil {
		d.Metrics = NoopMetrics{}
	}
	if d.RingSize <= 0 {
		d.RingSize = 3
	}
	if d.DefaultK <= 0 {
		d.DefaultK = 8
	}
	return &Service{
		sessions:    d.Sessions,
		lock:        d.Lock,
		rewriter:    d.Rewriter,
		extractor:   d.Extractor,
		selfQuery:   d.SelfQuery,
		expander:    d.Expander,
		retriever:   d.Retriever,
		synthesizer: d.Synthesizer,
		embedder:    d.Embedder,
		indexer:     d.Indexer,
		ringSize:    d.RingSize,
		defaultK:    d.DefaultK,
		clock:       d.Clock,
		log:         d.Log,
		metrics:     d.Metrics,
	}
}

func (s *Service) logInfo(msg string, fields map[string]any) {
	if s.log != nil {
		s.log.Info(msg, fields)
	}
}

func (s *Service) observeStage(stage string, start time.Time) {
	elapsed := s.clock.Now().Sub(start)
	s.metrics.ObserveHistogram("query_stage_ms", float64(elapsed.Milliseconds()), map[string]string{"stage": stage})
}

// Query runs the full pipeline for one utterance against sessionID:
// load -> rewrite -> entity-extract/merge -> self-query -> expand ->
// retrieve -> synthesize -> commit. The session is locked for the
// entire request and committed exactly once at the end, so a cancelled
// request leaves session state untouched.
func (s *Service) Query(ctx context.Context, sessionID, utterance string, userType UserType) (ragmodel.Answer, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, sessionID)
		if err != nil {
			return ragmodel.Answer{}, fmt.Errorf("service: acquire lock: %w", err)
		}
		if !acquired {
			return ragmodel.Answer{}, ErrSessionLocked
		}
		defer s.lock.Release(ctx, sessionID)
	}

	now := s.clock.Now()
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		if err != session.ErrNotFound {
			return ragmodel.Answer{}, fmt.Errorf("service: load session: %w", err)
		}
		sess = session.NewSession(sessionID, now)
	}

	rewritten := s.rewriter.Rewrite(ctx, utterance, sess.Turns, sess.ActiveEntities)

	turnID := uuid.New().String()
	obs := s.extractor.Extract(ctx, utterance, sess.ActiveEntities)
	session.MergeObservations(sess, turnID, obs, now)

	filters := s.selfQuery.Parse(ctx, rewritten.Text, rewritten.ImplicitFilters)

	expanded := rewritten.Text
	if s.expander != nil {
		expanded = s.expander.Expand(ctx, rewritten.Text)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{expanded})
	if err != nil || len(vectors) == 0 {
		return ragmodel.Answer{}, ErrEmbedFailed
	}

	retrieveStart := s.clock.Now()
	scored, _, err := s.retriever.Retrieve(ctx, vectors[0], filters, s.defaultK)
	if err != nil {
		s.metrics.IncCounter("retrieve_failed", map[string]string{"reason": "store_error"})
		scored = nil
	}
	s.observeStage("retrieve", retrieveStart)

	synthStart := s.clock.Now()
	ans := s.synthesizer.Synthesize(ctx, rewritten.Text, scored)
	s.observeStage("synthesize", synthStart)

	userTurn := ragmodel.Turn{ID: turnID, Role: "user", Content: utterance, Timestamp: now}
	session.AppendTurn(sess, userTurn, s.ringSize)

	assistantTurn := ragmodel.Turn{
		ID:        uuid.New().String(),
		Role:      "assistant",
		Content:   ans.Text,
		Sources:   citedDocuments(ans.Citations),
		Timestamp: s.clock.Now(),
	}
	session.AppendTurn(sess, assistantTurn, s.ringSize)

	if err := s.sessions.Commit(ctx, sess); err != nil {
		return ans, fmt.Errorf("service: commit session: %w", err)
	}

	s.logInfo("query_completed", map[string]any{
		"session_id": sessionID,
		"user_type":  string(userType),
		"confidence": ans.Confidence,
		"citations":  len(ans.Citations),
	})
	return ans, nil
}

// QueryStream is Query's streaming counterpart: it forwards content
// deltas to handler as they arrive and commits the session once, after
// the stream's terminal event.
func (s *Service) QueryStream(ctx context.Context, sessionID, utterance string, userType UserType, handler func(answer.StreamEvent) error) error {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("service: acquire lock: %w", err)
		}
		if !acquired {
			return ErrSessionLocked
		}
		defer s.lock.Release(ctx, sessionID)
	}

	now := s.clock.Now()
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		if err != session.ErrNotFound {
			return fmt.Errorf("service: load session: %w", err)
		}
		sess = session.NewSession(sessionID, now)
	}

	rewritten := s.rewriter.Rewrite(ctx, utterance, sess.Turns, sess.ActiveEntities)

	turnID := uuid.New().String()
	obs := s.extractor.Extract(ctx, utterance, sess.ActiveEntities)
	session.MergeObservations(sess, turnID, obs, now)

	filters := s.selfQuery.Parse(ctx, rewritten.Text, rewritten.ImplicitFilters)

	expanded := rewritten.Text
	if s.expander != nil {
		expanded = s.expander.Expand(ctx, rewritten.Text)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{expanded})
	if err != nil || len(vectors) == 0 {
		return ErrEmbedFailed
	}

	scored, _, err := s.retriever.Retrieve(ctx, vectors[0], filters, s.defaultK)
	if err != nil {
		scored = nil
	}

	var final ragmodel.Answer
	streamErr := s.synthesizer.SynthesizeStream(ctx, rewritten.Text, scored, func(ev answer.StreamEvent) error {
		if ev.Complete {
			final = ev.Answer
		}
		return handler(ev)
	})
	if streamErr != nil {
		return streamErr
	}

	userTurn := ragmodel.Turn{ID: turnID, Role: "user", Content: utterance, Timestamp: now}
	session.AppendTurn(sess, userTurn, s.ringSize)
	assistantTurn := ragmodel.Turn{
		ID:        uuid.New().String(),
		Role:      "assistant",
		Content:   final.Text,
		Sources:   citedDocuments(final.Citations),
		Timestamp: s.clock.Now(),
	}
	session.AppendTurn(sess, assistantTurn, s.ringSize)

	return s.sessions.Commit(ctx, sess)
}

// Ingest indexes one document via the configured Indexer.
func (s *Service) Ingest(ctx context.Context, path string) (ingest.Result, error) {
	return s.indexer.Ingest(ctx, path)
}

// ActiveFilters reports the session's current ActiveEntityView, backing
// the "filters currently in force" display in both clients.
func (s *Service) ActiveFilters(ctx context.Context, sessionID string) (ragmodel.ActiveEntityView, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.ActiveEntities, nil
}

// CreateSession provisions a new, empty session and returns its id.
func (s *Service) CreateSession(ctx context.Context) (string, error) {
	id := uuid.New().String()
	if err := s.sessions.Commit(ctx, session.NewSession(id, s.clock.Now())); err != nil {
		return "", fmt.Errorf("service: create session: %w", err)
	}
	return id, nil
}

// ResetSession replaces sessionID's state with a fresh, empty session.
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	return s.sessions.Commit(ctx, session.NewSession(sessionID, s.clock.Now()))
}

// SweepIdleSessions deletes every session idle since before cutoff,
// returning how many were removed.
func (s *Service) SweepIdleSessions(ctx context.Context, cutoff time.Time) (int, error) {
	return session.JanitorSweep(ctx, s.sessions, cutoff)
}

func citedDocuments(citations []ragmodel.SourceCitation) []string {
	if len(citations) == 0 {
		return nil
	}
	out := make([]string, len(citations))
	for i, c := range citations {
		out[i] = c.DocumentName
	}
	return out
}
