/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  engine.EntityStore:  Hierarchy reads, default-rate writes
  engine.TxSheetStore: Override sheets with transactional supersede
  engine.HistoryStore: Append-only rate-change audit
  surge.ConfigStore:   Surge config persistence

APPEND-ONLY ENFORCEMENT:
  rate_history has no UPDATE or DELETE statements. Rollbacks are new
  forward writes performed by the cascade engine.

KEY TABLES:
  entities:      Hierarchy nodes with optional default rate and capacity
  sheets:        Override sheets, windows serialized as JSON
  surge_configs: Surge parameters and demand/supply state
  rate_history:  Immutable log of default-rate changes

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/pricing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  resolver := &engine.Resolver{Sheets: store, Entities: store}

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/surge"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset wipes all data. Used by demo scenario loaders; never call in
// production.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM sheets;
		DELETE FROM surge_configs;
		DELETE FROM rate_history;
		DELETE FROM entities;
	`)
	return err
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Hierarchy nodes (customer / location / sublocation / event)
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		level TEXT NOT NULL,
		parent_id TEXT,
		name TEXT NOT NULL,
		default_rate TEXT,
		capacity_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entities_parent
		ON entities(parent_id);
	CREATE INDEX IF NOT EXISTS idx_entities_level
		ON entities(level);

	-- Override sheets (rate and capacity)
	CREATE TABLE IF NOT EXISTS sheets (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		level TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		event_id TEXT,
		priority INTEGER NOT NULL DEFAULT 0,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		windows_json TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		origin TEXT NOT NULL DEFAULT 'manual',
		config_id TEXT,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: resolution candidate listing
	CREATE INDEX IF NOT EXISTS idx_sheets_entity_kind
		ON sheets(entity_id, kind);
	CREATE INDEX IF NOT EXISTS idx_sheets_status
		ON sheets(status);
	CREATE INDEX IF NOT EXISTS idx_sheets_config
		ON sheets(config_id) WHERE config_id IS NOT NULL;

	-- Surge configs
	CREATE TABLE IF NOT EXISTS surge_configs (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		level TEXT NOT NULL,
		demand_supply_json TEXT NOT NULL,
		params_json TEXT NOT NULL,
		windows_json TEXT,
		days_json TEXT,
		last_materialized TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_surge_configs_entity
		ON surge_configs(entity_id);

	-- Rate history (append-only; no UPDATE or DELETE, ever)
	CREATE TABLE IF NOT EXISTS rate_history (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		old_rate TEXT,
		new_rate TEXT NOT NULL,
		changed_at TEXT NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_rate_history_entity
		ON rate_history(entity_id, changed_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so sheet queries can run inside
// WithTx transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ENTITY STORE
// =============================================================================

func (s *Store) GetEntity(ctx context.Context, id engine.EntityID) (*engine.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, level, parent_id, name, default_rate, capacity_json, created_at
		 FROM entities WHERE id = ?`, string(id))
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NotFoundError{Kind: "entity", ID: string(id)}
	}
	return e, err
}

func (s *Store) Ancestors(ctx context.Context, id engine.EntityID) ([]*engine.Entity, error) {
	ent, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []*engine.Entity
	for ent.ParentID != nil {
		parent, err := s.GetEntity(ctx, *ent.ParentID)
		if err != nil {
			if engine.IsNotFound(err) {
				break
			}
			return nil, err
		}
		out = append(out, parent)
		ent = parent
	}
	return out, nil
}

func (s *Store) Descendants(ctx context.Context, id engine.EntityID) ([]*engine.Entity, error) {
	var out []*engine.Entity
	frontier := []string{string(id)}
	for len(frontier) > 0 {
		placeholders := strings.TrimRight(strings.Repeat("?,", len(frontier)), ",")
		args := make([]any, len(frontier))
		for i, f := range frontier {
			args[i] = f
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, level, parent_id, name, default_rate, capacity_json, created_at
			 FROM entities WHERE parent_id IN (`+placeholders+`) ORDER BY id`, args...)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for rows.Next() {
			e, err := scanEntity(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, e)
			frontier = append(frontier, string(e.ID))
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

func (s *Store) UpdateDefaultRate(ctx context.Context, id engine.EntityID, rate decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET default_rate = ? WHERE id = ?`, rate.String(), string(id))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &engine.NotFoundError{Kind: "entity", ID: string(id)}
	}
	return nil
}

func (s *Store) SaveEntity(ctx context.Context, e *engine.Entity) error {
	var rate any
	if e.DefaultRate != nil {
		rate = e.DefaultRate.String()
	}
	var capJSON any
	if e.Capacity != nil {
		b, err := json.Marshal(capacityJSON{
			Min:       e.Capacity.MinCapacity.String(),
			Max:       e.Capacity.MaxCapacity.String(),
			Default:   e.Capacity.DefaultCapacity.String(),
			Allocated: e.Capacity.AllocatedCapacity.String(),
		})
		if err != nil {
			return err
		}
		capJSON = string(b)
	}
	var parent any
	if e.ParentID != nil {
		parent = string(*e.ParentID)
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (id, level, parent_id, name, default_rate, capacity_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   level = excluded.level, parent_id = excluded.parent_id, name = excluded.name,
		   default_rate = excluded.default_rate, capacity_json = excluded.capacity_json`,
		string(e.ID), string(e.Level), parent, e.Name, rate, capJSON, createdAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) ListEntities(ctx context.Context, level engine.Level) ([]*engine.Entity, error) {
	query := `SELECT id, level, parent_id, name, default_rate, capacity_json, created_at FROM entities`
	var args []any
	if level != "" {
		query += ` WHERE level = ?`
		args = append(args, string(level))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*engine.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// SHEET STORE
// =============================================================================

func (s *Store) ListSheets(ctx context.Context, f engine.SheetFilter) ([]*engine.Sheet, error) {
	return listSheets(ctx, s.db, f)
}

func (s *Store) GetSheet(ctx context.Context, id engine.SheetID) (*engine.Sheet, error) {
	return getSheet(ctx, s.db, id)
}

func (s *Store) CreateSheet(ctx context.Context, sheet *engine.Sheet) error {
	return createSheet(ctx, s.db, sheet)
}

func (s *Store) UpdateSheetStatus(ctx context.Context, id engine.SheetID, status *engine.ApprovalStatus, isActive *bool) error {
	return updateSheetStatus(ctx, s.db, id, status, isActive)
}

func (s *Store) Supersede(ctx context.Context, id engine.SheetID) error {
	return supersede(ctx, s.db, id)
}

// WithTx executes fn within a database transaction. Used for the atomic
// supersede-and-approve pairing.
func (s *Store) WithTx(ctx context.Context, fn func(engine.SheetStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	view := &txSheetView{tx: tx}
	if err := fn(view); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// txSheetView routes sheet operations through one *sql.Tx.
type txSheetView struct {
	tx *sql.Tx
}

func (v *txSheetView) ListSheets(ctx context.Context, f engine.SheetFilter) ([]*engine.Sheet, error) {
	return listSheets(ctx, v.tx, f)
}
func (v *txSheetView) GetSheet(ctx context.Context, id engine.SheetID) (*engine.Sheet, error) {
	return getSheet(ctx, v.tx, id)
}
func (v *txSheetView) CreateSheet(ctx context.Context, sheet *engine.Sheet) error {
	return createSheet(ctx, v.tx, sheet)
}
func (v *txSheetView) UpdateSheetStatus(ctx context.Context, id engine.SheetID, status *engine.ApprovalStatus, isActive *bool) error {
	return updateSheetStatus(ctx, v.tx, id, status, isActive)
}
func (v *txSheetView) Supersede(ctx context.Context, id engine.SheetID) error {
	return supersede(ctx, v.tx, id)
}

func listSheets(ctx context.Context, q dbtx, f engine.SheetFilter) ([]*engine.Sheet, error) {
	query := `SELECT id, kind, level, entity_id, event_id, priority, effective_from, effective_to,
	                 windows_json, status, is_active, origin, config_id, metadata_json, created_at
	          FROM sheets WHERE 1=1`
	var args []any
	if len(f.EntityIDs) > 0 {
		query += ` AND entity_id IN (` + strings.TrimRight(strings.Repeat("?,", len(f.EntityIDs)), ",") + `)`
		for _, id := range f.EntityIDs {
			args = append(args, string(id))
		}
	}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	if f.ActiveOnly {
		query += ` AND status = ? AND is_active = TRUE`
		args = append(args, string(engine.StatusApproved))
	}
	if f.ConfigID != "" {
		query += ` AND config_id = ?`
		args = append(args, f.ConfigID)
	}
	query += ` ORDER BY created_at`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*engine.Sheet
	for rows.Next() {
		sheet, err := scanSheet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sheet)
	}
	return out, rows.Err()
}

func getSheet(ctx context.Context, q dbtx, id engine.SheetID) (*engine.Sheet, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, kind, level, entity_id, event_id, priority, effective_from, effective_to,
		        windows_json, status, is_active, origin, config_id, metadata_json, created_at
		 FROM sheets WHERE id = ?`, string(id))
	sheet, err := scanSheet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NotFoundError{Kind: "sheet", ID: string(id)}
	}
	return sheet, err
}

func createSheet(ctx context.Context, q dbtx, sheet *engine.Sheet) error {
	windows, err := json.Marshal(sheet.Windows)
	if err != nil {
		return err
	}
	var metadata any
	if len(sheet.Metadata) > 0 {
		b, err := json.Marshal(sheet.Metadata)
		if err != nil {
			return err
		}
		metadata = string(b)
	}
	var eventID any
	if sheet.EventID != nil {
		eventID = string(*sheet.EventID)
	}
	var effectiveTo any
	if sheet.EffectiveTo != nil {
		effectiveTo = sheet.EffectiveTo.UTC().Format(time.RFC3339Nano)
	}
	var configID any
	if sheet.ConfigID != "" {
		configID = sheet.ConfigID
	}
	createdAt := sheet.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO sheets (id, kind, level, entity_id, event_id, priority, effective_from,
		                     effective_to, windows_json, status, is_active, origin, config_id,
		                     metadata_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sheet.ID), string(sheet.Kind), string(sheet.Level), string(sheet.EntityID),
		eventID, sheet.Priority, sheet.EffectiveFrom.UTC().Format(time.RFC3339Nano),
		effectiveTo, string(windows), string(sheet.Status), sheet.IsActive,
		string(sheet.Origin), configID, metadata, createdAt.UTC().Format(time.RFC3339Nano))
	return err
}

func updateSheetStatus(ctx context.Context, q dbtx, id engine.SheetID, status *engine.ApprovalStatus, isActive *bool) error {
	var sets []string
	var args []any
	if status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*status))
	}
	if isActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *isActive)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, string(id))
	res, err := q.ExecContext(ctx, `UPDATE sheets SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &engine.NotFoundError{Kind: "sheet", ID: string(id)}
	}
	return nil
}

func supersede(ctx context.Context, q dbtx, id engine.SheetID) error {
	res, err := q.ExecContext(ctx,
		`UPDATE sheets SET status = ?, is_active = FALSE WHERE id = ?`,
		string(engine.StatusSuperseded), string(id))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &engine.NotFoundError{Kind: "sheet", ID: string(id)}
	}
	return nil
}

// =============================================================================
// HISTORY STORE - Append-only
// =============================================================================

func (s *Store) AppendRateHistory(ctx context.Context, entry engine.RateHistoryEntry) error {
	var oldRate any
	if entry.OldRate != nil {
		oldRate = entry.OldRate.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_history (id, entity_type, entity_id, old_rate, new_rate, changed_at, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(entry.ID), string(entry.EntityType), string(entry.EntityID),
		oldRate, entry.NewRate.String(), entry.ChangedAt.UTC().Format(time.RFC3339Nano), entry.Reason)
	return err
}

func (s *Store) History(ctx context.Context, id engine.EntityID) ([]engine.RateHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, old_rate, new_rate, changed_at, reason
		 FROM rate_history WHERE entity_id = ? ORDER BY changed_at`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.RateHistoryEntry
	for rows.Next() {
		var e engine.RateHistoryEntry
		var oldRate sql.NullString
		var newRate, changedAt string
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &oldRate, &newRate, &changedAt, &reason); err != nil {
			return nil, err
		}
		if oldRate.Valid {
			d, err := decimal.NewFromString(oldRate.String)
			if err != nil {
				return nil, err
			}
			e.OldRate = &d
		}
		d, err := decimal.NewFromString(newRate)
		if err != nil {
			return nil, err
		}
		e.NewRate = d
		e.ChangedAt, _ = time.Parse(time.RFC3339Nano, changedAt)
		e.Reason = reason.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// SURGE CONFIG STORE
// =============================================================================

func (s *Store) GetConfig(ctx context.Context, id surge.ConfigID) (*surge.Config, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entity_id, level, demand_supply_json, params_json, windows_json,
		        days_json, last_materialized, created_at, updated_at
		 FROM surge_configs WHERE id = ?`, string(id))
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NotFoundError{Kind: "surge config", ID: string(id)}
	}
	return cfg, err
}

func (s *Store) SaveConfig(ctx context.Context, cfg *surge.Config) error {
	ds, err := json.Marshal(cfg.DemandSupply)
	if err != nil {
		return err
	}
	params, err := json.Marshal(cfg.Params)
	if err != nil {
		return err
	}
	var windows any
	if len(cfg.Windows) > 0 {
		b, err := json.Marshal(cfg.Windows)
		if err != nil {
			return err
		}
		windows = string(b)
	}
	var days any
	if len(cfg.Days) > 0 {
		b, err := json.Marshal(cfg.Days)
		if err != nil {
			return err
		}
		days = string(b)
	}
	var lastMat any
	if cfg.LastMaterialized != nil {
		lastMat = cfg.LastMaterialized.UTC().Format(time.RFC3339Nano)
	}
	createdAt := cfg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := cfg.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO surge_configs (id, entity_id, level, demand_supply_json, params_json,
		                            windows_json, days_json, last_materialized, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   entity_id = excluded.entity_id, level = excluded.level,
		   demand_supply_json = excluded.demand_supply_json, params_json = excluded.params_json,
		   windows_json = excluded.windows_json, days_json = excluded.days_json,
		   last_materialized = excluded.last_materialized, updated_at = excluded.updated_at`,
		string(cfg.ID), string(cfg.EntityID), string(cfg.Level), string(ds), string(params),
		windows, days, lastMat, createdAt.UTC().Format(time.RFC3339Nano),
		updatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) ListConfigs(ctx context.Context) ([]*surge.Config, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, level, demand_supply_json, params_json, windows_json,
		        days_json, last_materialized, created_at, updated_at
		 FROM surge_configs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*surge.Config
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

type capacityJSON struct {
	Min       string `json:"min"`
	Max       string `json:"max"`
	Default   string `json:"default"`
	Allocated string `json:"allocated"`
}

func scanEntity(row scanner) (*engine.Entity, error) {
	var e engine.Entity
	var parentID, defaultRate, capJSON sql.NullString
	var createdAt string
	if err := row.Scan(&e.ID, &e.Level, &parentID, &e.Name, &defaultRate, &capJSON, &createdAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		p := engine.EntityID(parentID.String)
		e.ParentID = &p
	}
	if defaultRate.Valid {
		d, err := decimal.NewFromString(defaultRate.String)
		if err != nil {
			return nil, err
		}
		e.DefaultRate = &d
	}
	if capJSON.Valid {
		var cj capacityJSON
		if err := json.Unmarshal([]byte(capJSON.String), &cj); err != nil {
			return nil, err
		}
		cc := &engine.CapacityConfig{}
		var err error
		if cc.MinCapacity, err = decimal.NewFromString(cj.Min); err != nil {
			return nil, err
		}
		if cc.MaxCapacity, err = decimal.NewFromString(cj.Max); err != nil {
			return nil, err
		}
		if cc.DefaultCapacity, err = decimal.NewFromString(cj.Default); err != nil {
			return nil, err
		}
		if cc.AllocatedCapacity, err = decimal.NewFromString(cj.Allocated); err != nil {
			return nil, err
		}
		e.Capacity = cc
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &e, nil
}

func scanSheet(row scanner) (*engine.Sheet, error) {
	var sheet engine.Sheet
	var eventID, effectiveTo, configID, metadata sql.NullString
	var windowsJSON, effectiveFrom, createdAt string
	if err := row.Scan(&sheet.ID, &sheet.Kind, &sheet.Level, &sheet.EntityID, &eventID,
		&sheet.Priority, &effectiveFrom, &effectiveTo, &windowsJSON, &sheet.Status,
		&sheet.IsActive, &sheet.Origin, &configID, &metadata, &createdAt); err != nil {
		return nil, err
	}
	if eventID.Valid {
		e := engine.EntityID(eventID.String)
		sheet.EventID = &e
	}
	sheet.EffectiveFrom, _ = time.Parse(time.RFC3339Nano, effectiveFrom)
	if effectiveTo.Valid {
		t, _ := time.Parse(time.RFC3339Nano, effectiveTo.String)
		sheet.EffectiveTo = &t
	}
	if err := json.Unmarshal([]byte(windowsJSON), &sheet.Windows); err != nil {
		return nil, err
	}
	if configID.Valid {
		sheet.ConfigID = configID.String
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &sheet.Metadata); err != nil {
			return nil, err
		}
	}
	sheet.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &sheet, nil
}

func scanConfig(row scanner) (*surge.Config, error) {
	var cfg surge.Config
	var windows, days, lastMat sql.NullString
	var ds, params, createdAt, updatedAt string
	if err := row.Scan(&cfg.ID, &cfg.EntityID, &cfg.Level, &ds, &params, &windows,
		&days, &lastMat, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ds), &cfg.DemandSupply); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &cfg.Params); err != nil {
		return nil, err
	}
	if windows.Valid {
		if err := json.Unmarshal([]byte(windows.String), &cfg.Windows); err != nil {
			return nil, err
		}
	}
	if days.Valid {
		if err := json.Unmarshal([]byte(days.String), &cfg.Days); err != nil {
			return nil, err
		}
	}
	if lastMat.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastMat.String)
		cfg.LastMaterialized = &t
	}
	cfg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &cfg, nil
}
