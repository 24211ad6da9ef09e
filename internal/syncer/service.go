package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnanishgitc/salesdashboard/internal/aggregate"
	"github.com/johnanishgitc/salesdashboard/internal/clock"
	"github.com/johnanishgitc/salesdashboard/internal/config"
	"github.com/johnanishgitc/salesdashboard/internal/ingest"
	"github.com/johnanishgitc/salesdashboard/internal/observability/metrics"
	"github.com/johnanishgitc/salesdashboard/internal/syncer/events"
	"github.com/johnanishgitc/salesdashboard/internal/tally"
	"github.com/johnanishgitc/salesdashboard/internal/voucher/domain"
)

// Status is the sync engine's lifecycle state. Error is absorbing until the
// next run starts.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusDownloading Status = "downloading"
	StatusUpdating    Status = "updating"
	StatusReady       Status = "ready"
	StatusError       Status = "error"
)

var (
	// ErrSyncInProgress rejects a second concurrent run.
	ErrSyncInProgress = errors.New("sync_in_progress")
	// ErrInvalidRequest rejects runs with missing identifiers.
	ErrInvalidRequest = errors.New("invalid_sync_request")
)

// ChunkFetcher is the upstream dependency of a sync run.
type ChunkFetcher interface {
	FetchLedgerChunk(ctx context.Context, req tally.ChunkRequest) ([]domain.RawVoucher, error)
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config
	Engine     *config.EngineConfigHolder
	Clock      clock.Clock
	Fetcher    ChunkFetcher
	Ingest     *ingest.Service
	Aggregates *aggregate.Service
	Hub        *events.Hub
	GenID      *snowflake.Node
	Metrics    *metrics.Metrics `optional:"true"`
}

// Service orchestrates chunked sync runs against the upstream ledger.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.Config
	engine     *config.EngineConfigHolder
	clock      clock.Clock
	fetcher    ChunkFetcher
	ingest     *ingest.Service
	aggregates *aggregate.Service
	hub        *events.Hub
	genID      *snowflake.Node
	metrics    *metrics.Metrics

	mu       sync.Mutex
	status   Status
	inFlight bool
}

var Module = fx.Module("syncer",
	fx.Provide(
		NewService,
		events.NewHub,
		func() (*snowflake.Node, error) { return snowflake.NewNode(1) },
		func(c *tally.Client) ChunkFetcher { return c },
	),
)

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("syncer.service"),
		cfg:        p.Config,
		engine:     p.Engine,
		clock:      p.Clock,
		fetcher:    p.Fetcher,
		ingest:     p.Ingest,
		aggregates: p.Aggregates,
		hub:        p.Hub,
		genID:      p.GenID,
		metrics:    p.Metrics,
		status:     StatusIdle,
	}
}

// Request identifies one sync run. FromDate/ToDate are only consulted for
// full downloads; updates derive their own range.
type Request struct {
	TallyLocID string `json:"tallyloc_id"`
	Company    string `json:"company"`
	Guid       string `json:"guid"`
	FromDate   string `json:"fromdate"`
	ToDate     string `json:"todate"`
	Token      string `json:"-"`
}

// State is the externally visible run state.
type State struct {
	Status  Status `json:"status"`
	Running bool   `json:"running"`
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Status: s.status, Running: s.inFlight}
}

func (s *Service) begin(next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrSyncInProgress
	}
	s.inFlight = true
	s.status = next
	return nil
}

func (s *Service) finish(final Status) {
	s.mu.Lock()
	s.inFlight = false
	s.status = final
	s.mu.Unlock()
}

// Download replays the full date range chunk by chunk, then rebuilds the
// rollups. It returns once the run is admitted; the run itself is
// asynchronous and reports through the event hub.
func (s *Service) Download(req Request) error {
	if strings.TrimSpace(req.Guid) == "" || req.FromDate == "" || req.ToDate == "" {
		return fmt.Errorf("%w: guid, fromdate and todate required", ErrInvalidRequest)
	}
	if err := s.begin(StatusDownloading); err != nil {
		return err
	}

	go s.runDownload(req)
	return nil
}

func (s *Service) runDownload(req Request) {
	runID := s.genID.Generate().String()
	log := s.log.With(zap.String("run_id", runID), zap.String("guid", req.Guid))
	ctx := context.Background()

	chunks := domain.ChunkDates(req.FromDate, req.ToDate)
	s.hub.Publish(req.Guid, events.Event{
		Type:    events.TypeStatusChanged,
		Status:  string(StatusDownloading),
		Message: fmt.Sprintf("Starting download: %d chunks", len(chunks)),
	})
	log.Info("download started", zap.Int("chunks", len(chunks)))

	total := s.syncChunks(ctx, log, req, chunks, 0, string(StatusDownloading))

	if err := s.persistSyncMeta(ctx, req.Guid, req.FromDate, req.ToDate, true); err != nil {
		log.Error("persisting sync meta failed", zap.Error(err))
	}
	if err := s.aggregates.Rebuild(ctx, req.Guid); err != nil {
		log.Error("rollup rebuild failed", zap.Error(err))
		s.hub.Publish(req.Guid, events.Event{Type: events.TypeError, Message: err.Error()})
		s.finish(StatusError)
		return
	}

	s.finish(StatusReady)
	s.hub.Publish(req.Guid, events.Event{
		Type:    events.TypeDownloadComplete,
		Records: total,
		Message: fmt.Sprintf("Download complete: %d vouchers synced", total),
	})
	log.Info("download complete", zap.Int("records", total))
}

// Update fetches only vouchers altered since the highest alterid already
// cached, over the window from the last full download's start date to today.
func (s *Service) Update(req Request) error {
	if strings.TrimSpace(req.Guid) == "" {
		return fmt.Errorf("%w: guid required", ErrInvalidRequest)
	}
	if err := s.begin(StatusUpdating); err != nil {
		return err
	}

	go s.runUpdate(req)
	return nil
}

func (s *Service) runUpdate(req Request) {
	runID := s.genID.Generate().String()
	log := s.log.With(zap.String("run_id", runID), zap.String("guid", req.Guid))
	ctx := context.Background()

	var maxAlterID int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(alterid),0) FROM vouchers WHERE guid = ?`, req.Guid).
		Scan(&maxAlterID).Error; err != nil {
		log.Error("reading max alterid failed", zap.Error(err))
		s.hub.Publish(req.Guid, events.Event{Type: events.TypeError, Message: err.Error()})
		s.finish(StatusError)
		return
	}

	from := s.syncMetaValue(ctx, domain.SyncMetaLastSyncFrom)
	if from == "" {
		from = s.cfg.DefaultSyncFrom
	}
	to := domain.FormatDate(s.clock.Now())
	chunks := domain.ChunkDates(from, to)

	s.hub.Publish(req.Guid, events.Event{
		Type:    events.TypeStatusChanged,
		Status:  string(StatusUpdating),
		Message: fmt.Sprintf("Fetching updates since alterid %d", maxAlterID),
	})
	log.Info("update started", zap.Int64("since_alterid", maxAlterID), zap.Int("chunks", len(chunks)))

	total := s.syncChunks(ctx, log, req, chunks, maxAlterID, string(StatusUpdating))

	if err := s.persistSyncMeta(ctx, req.Guid, "", to, false); err != nil {
		log.Error("persisting sync meta failed", zap.Error(err))
	}
	if err := s.aggregates.Rebuild(ctx, req.Guid); err != nil {
		log.Error("rollup rebuild failed", zap.Error(err))
		s.hub.Publish(req.Guid, events.Event{Type: events.TypeError, Message: err.Error()})
		s.finish(StatusError)
		return
	}

	s.finish(StatusReady)
	s.hub.Publish(req.Guid, events.Event{
		Type:    events.TypeUpdateComplete,
		Records: total,
		Message: fmt.Sprintf("Update complete: %d vouchers", total),
	})
	log.Info("update complete", zap.Int("records", total))
}

// syncChunks walks the full chunk list. Every chunk gets a progress event;
// a failed chunk gets an error event and the loop continues, so one bad day
// never aborts the run.
func (s *Service) syncChunks(ctx context.Context, log *zap.Logger, req Request, chunks []domain.DateChunk, lastAlterID int64, mode string) int {
	total := 0
	for i, chunk := range chunks {
		s.hub.Publish(req.Guid, events.Event{
			Type:    events.TypeProgress,
			Current: i + 1,
			Total:   len(chunks),
			Message: fmt.Sprintf("Fetching %s to %s", chunk.From, chunk.To),
		})

		vouchers, err := s.fetcher.FetchLedgerChunk(ctx, tally.ChunkRequest{
			TallyLocID:  req.TallyLocID,
			Company:     req.Company,
			Guid:        req.Guid,
			FromDate:    chunk.From,
			ToDate:      chunk.To,
			LastAlterID: lastAlterID,
			Token:       req.Token,
		})
		if err != nil {
			log.Warn("chunk fetch failed", zap.String("from", chunk.From), zap.Error(err))
			s.hub.Publish(req.Guid, events.Event{
				Type:    events.TypeError,
				Message: fmt.Sprintf("Failed on chunk %s: %v", chunk.From, err),
			})
			s.metrics.RecordSyncChunk(ctx, mode, true)
			continue
		}

		n, err := s.ingest.Ingest(ctx, req.Guid, vouchers)
		if err != nil {
			log.Warn("chunk ingest failed", zap.String("from", chunk.From), zap.Error(err))
			s.hub.Publish(req.Guid, events.Event{
				Type:    events.TypeError,
				Message: fmt.Sprintf("Failed on chunk %s: %v", chunk.From, err),
			})
			s.metrics.RecordSyncChunk(ctx, mode, true)
			continue
		}
		total += n
		s.metrics.RecordSyncChunk(ctx, mode, false)
		s.metrics.RecordVouchersIngested(ctx, n)
	}
	return total
}

func (s *Service) persistSyncMeta(ctx context.Context, guid, from, to string, fullDownload bool) error {
	entries := map[string]string{
		domain.SyncMetaLastSyncTime: s.clock.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		domain.SyncMetaLastSyncTo:   to,
	}
	if fullDownload {
		entries[domain.SyncMetaLastSyncGuid] = guid
		entries[domain.SyncMetaLastSyncFrom] = from
	}
	for key, value := range entries {
		row := domain.SyncMeta{Key: key, Value: value}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) syncMetaValue(ctx context.Context, key string) string {
	var row domain.SyncMeta
	if err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error; err != nil {
		return ""
	}
	return row.Value
}
