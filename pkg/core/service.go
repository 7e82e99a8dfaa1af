package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/verbatim/pkg/similarity"
	"github.com/aretw0/verbatim/pkg/textdiff"
)

// Check defaults.
const (
	DefaultMaxMatches  = 10
	DefaultParallelism = 4
)

// Service handles the business logic for documents and checks.
type Service struct {
	mu sync.RWMutex

	repo      Repository
	checks    CheckRepository
	peers     PeerIndex
	blobs     BlobStore
	extractor TextExtractor
	cloud     CloudScanner

	ranker    *similarity.Ranker
	engine    *textdiff.Engine
	previewer textdiff.Previewer

	maxMatches  int
	minScore    float64
	parallelism int
	cloudOnly   bool

	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	completed int
	failed    int
	lastCheck time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithChecks sets the repository for check results.
func WithChecks(checks CheckRepository) Option {
	return func(s *Service) { s.checks = checks }
}

// WithPeerIndex sets the matched-peers index.
func WithPeerIndex(peers PeerIndex) Option {
	return func(s *Service) { s.peers = peers }
}

// WithBlobStore keeps uploaded originals in the given store.
func WithBlobStore(blobs BlobStore) Option {
	return func(s *Service) { s.blobs = blobs }
}

// WithExtractor sets the extractor used by IngestPDF.
func WithExtractor(e TextExtractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithCloudScanner enables cloud folder inspection and sync.
func WithCloudScanner(sc CloudScanner) Option {
	return func(s *Service) { s.cloud = sc }
}

// WithRanker replaces the default similarity ranker.
func WithRanker(r *similarity.Ranker) Option {
	return func(s *Service) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithDiffTimeout bounds each diff computation.
func WithDiffTimeout(d time.Duration) Option {
	return func(s *Service) { s.engine = textdiff.NewEngine(d) }
}

// WithPreviewer sets the preview limits and labels.
func WithPreviewer(p textdiff.Previewer) Option {
	return func(s *Service) { s.previewer = p }
}

// WithMaxMatches caps the number of matches kept per check. Zero keeps all.
func WithMaxMatches(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxMatches = n
		}
	}
}

// WithMinScore drops matches scoring below the threshold (0..100).
func WithMinScore(score float64) Option {
	return func(s *Service) { s.minScore = score }
}

// WithParallelism sets how many diff previews a single check computes at once.
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithCloudOnly restricts candidates to known peers and documents marked as
// added to the cloud.
func WithCloudOnly(enabled bool) Option {
	return func(s *Service) { s.cloudOnly = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how document and check IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewService creates a new Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		ranker:      similarity.MustNewRanker(similarity.DefaultConfig()),
		engine:      textdiff.NewEngine(textdiff.DefaultTimeout),
		previewer:   textdiff.NewPreviewer(),
		maxMatches:  DefaultMaxMatches,
		parallelism: DefaultParallelism,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.checks == nil {
		if cr, ok := repo.(CheckRepository); ok {
			s.checks = cr
		}
	}
	return s
}

// Ingest stores a new document built from plain text.
// Invalid UTF-8 is replaced with U+FFFD before storing.
func (s *Service) Ingest(ctx context.Context, name, text string, meta Metadata) (Document, error) {
	text = textdiff.Sanitize(text)
	if strings.TrimSpace(text) == "" {
		return Document{}, ErrEmptyText
	}
	if meta == nil {
		meta = Metadata{}
	}
	doc := Document{
		ID:        s.newID(),
		Name:      strings.TrimSpace(name),
		Content:   text,
		CreatedAt: s.now().UTC(),
		Metadata:  meta,
	}
	if doc.Name == "" {
		doc.Name = doc.ID
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("failed to save document: %w", err)
	}
	s.logger.Debug("document ingested", "id", doc.ID, "name", doc.Name, "runes", len([]rune(text)))
	return doc, nil
}

// IngestPDF extracts the text of a PDF, keeps the original bytes when a blob
// store is configured, and stores the document.
func (s *Service) IngestPDF(ctx context.Context, name string, data []byte, meta Metadata) (Document, error) {
	if s.extractor == nil {
		return Document{}, fmt.Errorf("%w: no text extractor configured", ErrUnsupported)
	}
	text, pages, err := s.extractor.Extract(data)
	if err != nil {
		return Document{}, fmt.Errorf("failed to extract %q: %w", name, err)
	}
	if meta == nil {
		meta = Metadata{}
	}
	meta[MetaPages] = pages

	var blobName string
	if s.blobs != nil {
		blobName = s.newID() + ".pdf"
		if err := s.blobs.Put(ctx, blobName, data); err != nil {
			return Document{}, fmt.Errorf("failed to store original: %w", err)
		}
		meta[MetaOriginal] = blobName
	}

	doc, err := s.Ingest(ctx, name, text, meta)
	if err != nil && blobName != "" {
		if derr := s.blobs.Delete(ctx, blobName); derr != nil {
			s.logger.Warn("failed to clean up original", "blob", blobName, "error", derr)
		}
	}
	return doc, err
}

// Original returns the uploaded bytes of a document.
func (s *Service) Original(ctx context.Context, id string) ([]byte, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	name, _ := doc.Metadata[MetaOriginal].(string)
	if s.blobs == nil || name == "" {
		return nil, fmt.Errorf("original of %s: %w", id, ErrNotFound)
	}
	return s.blobs.Get(ctx, name)
}

// GetDocument retrieves a document.
func (s *Service) GetDocument(ctx context.Context, id string) (Document, error) {
	if id == "" {
		return Document{}, ErrEmptyID
	}
	return s.repo.Get(ctx, id)
}

// ListDocuments returns every document without its content, newest first.
func (s *Service) ListDocuments(ctx context.Context) ([]Document, error) {
	var (
		docs []Document
		err  error
	)
	if sum, ok := s.repo.(Summarizer); ok {
		docs, err = sum.Summaries(ctx)
	} else {
		docs, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Content = ""
	}
	SortNewestFirst(docs)
	return docs, nil
}

// DeleteDocument removes a document together with its checks, peer links and original.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cleanup(ctx, doc)
	return nil
}

func (s *Service) cleanup(ctx context.Context, doc Document) {
	if s.checks != nil {
		if err := s.checks.DeleteChecks(ctx, doc.ID); err != nil {
			s.logger.Warn("failed to delete checks", "id", doc.ID, "error", err)
		}
	}
	if s.peers != nil {
		if err := s.peers.Remove(ctx, doc.ID); err != nil {
			s.logger.Warn("failed to update peer index", "id", doc.ID, "error", err)
		}
	}
	if name, _ := doc.Metadata[MetaOriginal].(string); name != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, name); err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Warn("failed to delete original", "blob", name, "error", err)
		}
	}
}

// DeleteAll removes every document and returns how many were deleted.
func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, doc := range docs {
		if err := s.repo.Delete(ctx, doc.ID); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", doc.ID, err)
		}
		s.cleanup(ctx, doc)
		deleted++
	}
	if s.peers != nil {
		if err := s.peers.Reset(ctx); err != nil {
			return deleted, fmt.Errorf("failed to reset peer index: %w", err)
		}
	}
	return deleted, nil
}

// MarkCloud records that a document was uploaded to a cloud folder.
func (s *Service) MarkCloud(ctx context.Context, id, link string) (Document, error) {
	normalized, err := NormalizeCloudLink(link)
	if err != nil {
		return Document{}, err
	}
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if doc.Metadata == nil {
		doc.Metadata = Metadata{}
	}
	doc.Metadata[MetaCloudLink] = normalized
	doc.Metadata[MetaAddedToCloud] = true
	if err := s.repo.Save(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("failed to save document: %w", err)
	}
	return doc, nil
}

func (s *Service) checkRepo() (CheckRepository, error) {
	if s.checks == nil {
		return nil, fmt.Errorf("%w: no check repository configured", ErrUnsupported)
	}
	return s.checks, nil
}

// CreateCheck records a queued check for a document.
func (s *Service) CreateCheck(ctx context.Context, documentID string) (Check, error) {
	checks, err := s.checkRepo()
	if err != nil {
		return Check{}, err
	}
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return Check{}, err
	}
	check := Check{
		ID:         s.newID(),
		DocumentID: documentID,
		Status:     CheckQueued,
		Matches:    []Match{},
		CreatedAt:  s.now().UTC(),
	}
	if err := checks.SaveCheck(ctx, check); err != nil {
		return Check{}, fmt.Errorf("failed to save check: %w", err)
	}
	return check, nil
}

// ProcessCheck runs a previously created check to completion. The returned
// error reports why the check failed; the failure is also persisted on the check.
func (s *Service) ProcessCheck(ctx context.Context, checkID string) (Check, error) {
	checks, err := s.checkRepo()
	if err != nil {
		return Check{}, err
	}
	check, err := checks.GetCheck(ctx, checkID)
	if err != nil {
		return Check{}, err
	}

	check.Status = CheckProcessing
	if err := checks.SaveCheck(ctx, check); err != nil {
		return check, fmt.Errorf("failed to save check: %w", err)
	}

	start := s.now()
	matches, err := s.evaluateDocument(ctx, check.DocumentID)
	completed := s.now().UTC()
	check.CompletedAt = &completed
	if err != nil {
		check.fail(err)
		if serr := checks.SaveCheck(ctx, check); serr != nil {
			s.logger.Error("failed to save failed check", "check", check.ID, "error", serr)
		}
		s.logger.Warn("check failed", "check", check.ID, "document", check.DocumentID, "error", err)
		s.record(false)
		return check, err
	}

	top := 0.0
	if len(matches) > 0 {
		top = matches[0].Similarity
	}
	check.Status = CheckCompleted
	check.Similarity = &top
	check.Matches = matches
	if err := checks.SaveCheck(ctx, check); err != nil {
		return check, fmt.Errorf("failed to save check: %w", err)
	}

	if s.peers != nil {
		var ids []string
		for _, m := range matches {
			if m.Similarity > 0 {
				ids = append(ids, m.DocumentID)
			}
		}
		if err := s.peers.Update(ctx, check.DocumentID, ids); err != nil {
			s.logger.Warn("failed to update peer index", "document", check.DocumentID, "error", err)
		}
	}

	s.record(true)
	s.logger.Info("check completed",
		"check", check.ID,
		"document", check.DocumentID,
		"matches", len(matches),
		"similarity", top,
		"duration", s.now().Sub(start))
	return check, nil
}

// FailCheck records cause as the failure of a check that did not reach a
// final state, for example when the code running it panicked.
// Checks that already completed or failed are returned unchanged.
func (s *Service) FailCheck(ctx context.Context, checkID string, cause error) (Check, error) {
	checks, err := s.checkRepo()
	if err != nil {
		return Check{}, err
	}
	check, err := checks.GetCheck(ctx, checkID)
	if err != nil {
		return Check{}, err
	}
	if check.Status == CheckCompleted || check.Status == CheckFailed {
		return check, nil
	}
	completed := s.now().UTC()
	check.CompletedAt = &completed
	check.fail(cause)
	if err := checks.SaveCheck(ctx, check); err != nil {
		return check, fmt.Errorf("failed to save check: %w", err)
	}
	s.record(false)
	return check, nil
}

func (s *Service) record(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.completed++
	} else {
		s.failed++
	}
	s.lastCheck = s.now().UTC()
}

// RunCheck creates and processes a check synchronously.
func (s *Service) RunCheck(ctx context.Context, documentID string) (Check, error) {
	check, err := s.CreateCheck(ctx, documentID)
	if err != nil {
		return Check{}, err
	}
	return s.ProcessCheck(ctx, check.ID)
}

func (s *Service) evaluateDocument(ctx context.Context, documentID string) ([]Match, error) {
	target, err := s.repo.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	corpus, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if s.cloudOnly {
		corpus, err = s.cloudCandidates(ctx, target.ID, corpus)
		if err != nil {
			return nil, err
		}
	}
	return s.Evaluate(ctx, target, corpus)
}

// cloudCandidates keeps known peers first, then documents added to the cloud.
func (s *Service) cloudCandidates(ctx context.Context, targetID string, corpus []Document) ([]Document, error) {
	byID := make(map[string]Document, len(corpus))
	for _, d := range corpus {
		byID[d.ID] = d
	}
	var out []Document
	seen := map[string]bool{targetID: true}
	if s.peers != nil {
		ids, err := s.peers.Peers(ctx, targetID)
		if err != nil {
			return nil, fmt.Errorf("failed to read peer index: %w", err)
		}
		for _, id := range ids {
			if d, ok := byID[id]; ok && !seen[id] {
				seen[id] = true
				out = append(out, d)
			}
		}
	}
	for _, d := range corpus {
		if !seen[d.ID] && d.AddedToCloud() {
			seen[d.ID] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// CheckText ranks an unsaved text against every stored document.
func (s *Service) CheckText(ctx context.Context, text string) ([]Match, error) {
	text = textdiff.Sanitize(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	corpus, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return s.Evaluate(ctx, Document{Content: text}, corpus)
}

// Evaluate ranks target against corpus and builds a diff preview for each
// retained match. The target itself and blank documents are skipped.
// Matches are ordered by similarity, highest first.
func (s *Service) Evaluate(ctx context.Context, target Document, corpus []Document) ([]Match, error) {
	candidates := make([]similarity.Candidate, 0, len(corpus))
	texts := make(map[string]string, len(corpus))
	for _, d := range corpus {
		if d.ID == target.ID || strings.TrimSpace(d.Content) == "" {
			continue
		}
		candidates = append(candidates, similarity.Candidate{ID: d.ID, Name: d.Name, Text: d.Content})
		texts[d.ID] = d.Content
	}

	results := s.ranker.Rank(target.Content, candidates)
	kept := results[:0]
	for _, r := range results {
		if r.Score < s.minScore {
			continue
		}
		kept = append(kept, r)
		if s.maxMatches > 0 && len(kept) == s.maxMatches {
			break
		}
	}

	matches := make([]Match, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, r := range kept {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			segments := s.engine.Segments(texts[r.ID], target.Content)
			matches[i] = Match{
				DocumentID:   r.ID,
				DocumentName: r.Name,
				Similarity:   round2(r.Score),
				DiffPreview:  s.previewer.Build(segments),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matches, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GetCheck retrieves a check by ID.
func (s *Service) GetCheck(ctx context.Context, id string) (Check, error) {
	if id == "" {
		return Check{}, ErrEmptyID
	}
	checks, err := s.checkRepo()
	if err != nil {
		return Check{}, err
	}
	return checks.GetCheck(ctx, id)
}

// ListChecks returns the checks of a document, newest first.
func (s *Service) ListChecks(ctx context.Context, documentID string) ([]Check, error) {
	if documentID == "" {
		return nil, ErrEmptyID
	}
	checks, err := s.checkRepo()
	if err != nil {
		return nil, err
	}
	list, err := checks.ListChecks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	SortChecksNewestFirst(list)
	return list, nil
}

// LatestCheck returns the most recent check of a document.
func (s *Service) LatestCheck(ctx context.Context, documentID string) (Check, error) {
	list, err := s.ListChecks(ctx, documentID)
	if err != nil {
		return Check{}, err
	}
	if len(list) == 0 {
		return Check{}, fmt.Errorf("checks of %s: %w", documentID, ErrNotFound)
	}
	return list[0], nil
}

// Diff returns the full diff between two stored documents.
func (s *Service) Diff(ctx context.Context, sourceID, targetID string) (Document, Document, []textdiff.Segment, error) {
	source, err := s.GetDocument(ctx, sourceID)
	if err != nil {
		return Document{}, Document{}, nil, err
	}
	target, err := s.GetDocument(ctx, targetID)
	if err != nil {
		return Document{}, Document{}, nil, err
	}
	return source, target, s.engine.Segments(source.Content, target.Content), nil
}

// Compare scores two ad-hoc texts against each other and previews their overlap.
func (s *Service) Compare(source, target string) (float64, string) {
	source, target = textdiff.Sanitize(source), textdiff.Sanitize(target)
	results := s.ranker.Rank(target, []similarity.Candidate{{ID: "source", Text: source}})
	return round2(results[0].Score), s.previewer.Build(s.engine.Segments(source, target))
}

// Related returns the documents recorded as peers of the given document.
func (s *Service) Related(ctx context.Context, id string) ([]Document, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if s.peers == nil {
		return nil, fmt.Errorf("%w: no peer index configured", ErrUnsupported)
	}
	ids, err := s.peers.Peers(ctx, id)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(ids))
	for _, peer := range ids {
		doc, err := s.repo.Get(ctx, peer)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		doc.Content = ""
		docs = append(docs, doc)
	}
	return docs, nil
}
