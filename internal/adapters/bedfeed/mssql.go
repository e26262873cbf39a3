package bedfeed

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/cmc-dx/rmrp/internal/shared/config"
	"github.com/cmc-dx/rmrp/internal/shared/metrics"
	"github.com/cmc-dx/rmrp/internal/shared/types"
	"github.com/cmc-dx/rmrp/internal/snapshot"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

// MSSQLAdapter polls the hospital information system's bed status view
// over SQL Server and appends the counts into the bed status store.
type MSSQLAdapter struct {
	db     *sql.DB
	config Config
	store  snapshot.Store

	running bool
	mu      sync.RWMutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Config holds the bed feed adapter configuration
type Config struct {
	config.HISConfig

	// BedStatusView is the per-ward bed status view exposed by the HIS
	BedStatusView string
}

// DefaultConfig returns the default bed feed configuration
func DefaultConfig(his config.HISConfig) Config {
	return Config{
		HISConfig:     his,
		BedStatusView: "dbo.WardBedStatus",
	}
}

// NewMSSQL creates a bed feed adapter writing into store
func NewMSSQL(cfg Config, store snapshot.Store) *MSSQLAdapter {
	return &MSSQLAdapter{config: cfg, store: store}
}

// Start opens the database connection and begins the poll loop
func (a *MSSQLAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("bed feed already running")
	}

	db, err := sql.Open("sqlserver", connString(a.config))
	if err != nil {
		return fmt.Errorf("failed to open HIS database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping HIS database: %w", err)
	}

	a.db = db
	a.running = true

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollLoop(pollCtx)

	return nil
}

// Stop halts polling and closes the connection
func (a *MSSQLAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if a.db != nil {
		a.db.Close()
	}

	a.running = false
	return nil
}

// Health checks HIS connectivity
func (a *MSSQLAdapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("bed feed not running")
	}
	return a.db.PingContext(ctx)
}

// SourceSystem names the upstream system
func (a *MSSQLAdapter) SourceSystem() string {
	return "his-mssql"
}

// pollLoop polls on a jittered interval so restarted replicas do not
// hit the HIS in lockstep.
func (a *MSSQLAdapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter(a.config.PollInterval)):
			start := time.Now()
			if err := a.pollOnce(ctx); err != nil {
				log.Printf("bedfeed: poll failed: %v", err)
				metrics.RecordBedFeedPoll("error", time.Since(start))
				continue
			}
			metrics.RecordBedFeedPoll("ok", time.Since(start))
		}
	}
}

// pollOnce reads the current per-ward counters and appends them as
// report rows.
func (a *MSSQLAdapter) pollOnce(ctx context.Context) error {
	query := fmt.Sprintf(`
		SELECT
			WardCode,
			AdmissionCount,
			DischargeCount,
			BedsInUse,
			AppointmentCount,
			CheckupCount
		FROM %s
	`, a.config.BedStatusView)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query bed status view: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var records []snapshot.Record
	for rows.Next() {
		var ward string
		var admissions, discharges, inUse, appointments, checkups int

		if err := rows.Scan(&ward, &admissions, &discharges, &inUse, &appointments, &checkups); err != nil {
			return fmt.Errorf("failed to scan bed status row: %w", err)
		}

		records = append(records, snapshot.Record{
			ID:           types.NewID(),
			Ward:         wardgraph.Ward(ward),
			ReportDate:   day,
			ReportedAt:   now,
			Admissions:   admissions,
			Discharges:   discharges,
			InUse:        inUse,
			Appointments: appointments,
			Checkups:     checkups,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read bed status rows: %w", err)
	}

	return a.store.Insert(ctx, records)
}

// jitter spreads the poll interval by up to 10%
func jitter(interval time.Duration) time.Duration {
	if interval <= 0 {
		return time.Minute
	}
	return interval + time.Duration(rand.Int63n(int64(interval)/10+1))
}

func connString(cfg Config) string {
	s := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)
	if cfg.SSLMode != "disable" {
		s += ";encrypt=true;TrustServerCertificate=true"
	}
	return s
}

// Verify interface implementation
var _ Feed = (*MSSQLAdapter)(nil)
