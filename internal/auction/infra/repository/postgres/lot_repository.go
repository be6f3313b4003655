package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"github.com/cristianortiz/auctionEngine/internal/shared/db"
	"github.com/cristianortiz/auctionEngine/internal/shared/db/migrations"
	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Database is the statement surface of db.Manager used by the repository.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Prepare(ctx context.Context, name, sql string) error
	ExecPrepared(ctx context.Context, name string, args ...any) (pgconn.CommandTag, error)
	QueryPrepared(ctx context.Context, name string, scan func(pgx.Rows) error, args ...any) error
	CheckAndClearReconnectFlag() bool
	Generation() uint64
}

const lotColumns = "id, name, description, start_price, current_price, owner_id, created_at, auction_end_date"

const (
	stmtSelectAll  = "lot_select_all"
	stmtSelectByID = "lot_select_by_id"
	stmtInsert     = "lot_insert"
	stmtUpdate     = "lot_update"
	stmtDelete     = "lot_delete"
	stmtUpdateBid  = "lot_update_bid"
)

// statements is the prepared catalog, in preparation order.
var statements = []struct{ name, sql string }{
	{stmtSelectAll, "SELECT " + lotColumns + " FROM lots ORDER BY created_at DESC, id DESC"},
	{stmtSelectByID, "SELECT " + lotColumns + " FROM lots WHERE id = $1"},
	{stmtInsert, `INSERT INTO lots (name, description, start_price, current_price, owner_id, auction_end_date)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + lotColumns},
	{stmtUpdate, `UPDATE lots
        SET name = $2, description = $3, start_price = $4, current_price = $5, owner_id = $6, auction_end_date = $7
        WHERE id = $1
        RETURNING ` + lotColumns},
	{stmtDelete, "DELETE FROM lots WHERE id = $1"},
	// Monotonicity and the deadline are enforced by the row filter, so two
	// concurrent bids cannot both win against the same floor. The amount is
	// compared at the column scale, the value that is actually stored.
	{stmtUpdateBid, `UPDATE lots
        SET current_price = $2
        WHERE id = $1
          AND $2::numeric(12,2) > start_price
          AND (current_price IS NULL OR current_price < $2::numeric(12,2))
          AND (auction_end_date IS NULL OR auction_end_date > NOW())
        RETURNING ` + lotColumns},
}

// LotRepository implements domain.LotRepository on a single prepared-statement connection.
type LotRepository struct {
	db Database

	mu          sync.Mutex
	prepared    bool
	// connection generation the catalog was prepared on
	preparedGen uint64
}

// NewLotRepository creates a new instance of LotRepository
func NewLotRepository(database Database) *LotRepository {
	return &LotRepository{db: database}
}

// EnsureSchema creates the lots table and its indexes when missing. Safe on every start.
func (r *LotRepository) EnsureSchema(ctx context.Context) error {
	stmts, err := migrations.SchemaStatements()
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	log.Info("Lots schema ensured")
	return nil
}

// List returns every lot, newest first. No lots is an empty slice.
func (r *LotRepository) List(ctx context.Context) ([]*domain.Lot, error) {
	lots := []*domain.Lot{}
	err := r.query(ctx, stmtSelectAll, func(rows pgx.Rows) error {
		lots = lots[:0]
		for rows.Next() {
			lot, err := scanLot(rows)
			if err != nil {
				return err
			}
			lots = append(lots, lot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lots, nil
}

// FindByID returns nil without error when no lot has the id.
func (r *LotRepository) FindByID(ctx context.Context, id int64) (*domain.Lot, error) {
	return r.queryOne(ctx, stmtSelectByID, id)
}

// Create inserts lot and returns the row as stored, with id and created_at assigned by the database.
func (r *LotRepository) Create(ctx context.Context, lot *domain.Lot) (*domain.Lot, error) {
	created, err := r.queryOne(ctx, stmtInsert,
		lot.Name,
		lot.Description,
		lot.StartPrice,
		nullablePrice(lot.CurrentPrice),
		lot.OwnerID,
		lot.AuctionEndDate,
	)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, errors.New("insert lot: no row returned")
	}
	return created, nil
}

// Update replaces every mutable column; nil without error when the id does not exist.
func (r *LotRepository) Update(ctx context.Context, id int64, lot *domain.Lot) (*domain.Lot, error) {
	return r.queryOne(ctx, stmtUpdate,
		id,
		lot.Name,
		lot.Description,
		lot.StartPrice,
		nullablePrice(lot.CurrentPrice),
		lot.OwnerID,
		lot.AuctionEndDate,
	)
}

// Remove reports whether exactly one row was deleted.
func (r *LotRepository) Remove(ctx context.Context, id int64) (bool, error) {
	var tag pgconn.CommandTag
	err := r.withStatements(ctx, func() error {
		var err error
		tag, err = r.db.ExecPrepared(ctx, stmtDelete, id)
		return err
	})
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateCurrentPrice records a winning bid. Nil without error means the lot is
// gone or no longer accepts amount.
func (r *LotRepository) UpdateCurrentPrice(ctx context.Context, id int64, amount decimal.Decimal) (*domain.Lot, error) {
	return r.queryOne(ctx, stmtUpdateBid, id, amount)
}

func (r *LotRepository) queryOne(ctx context.Context, name string, args ...any) (*domain.Lot, error) {
	var lot *domain.Lot
	err := r.query(ctx, name, func(rows pgx.Rows) error {
		lot = nil
		if !rows.Next() {
			return nil
		}
		var err error
		lot, err = scanLot(rows)
		return err
	}, args...)
	if err != nil {
		return nil, err
	}
	return lot, nil
}

func (r *LotRepository) query(ctx context.Context, name string, scan func(pgx.Rows) error, args ...any) error {
	return r.withStatements(ctx, func() error {
		return r.db.QueryPrepared(ctx, name, scan, args...)
	})
}

// withStatements makes sure the catalog exists on the current connection before
// running fn. A reconnect can also happen inside fn itself (the liveness check
// runs per statement); the statement then fails against the fresh connection.
// That is detected from the connection generation, or from the backend
// reporting the statement missing, never from the one-shot reconnect flag,
// which a concurrent caller may already have consumed. The catalog is rebuilt
// and fn is retried once.
func (r *LotRepository) withStatements(ctx context.Context, fn func() error) error {
	gen, err := r.prepareStatements(ctx)
	if err != nil {
		return err
	}
	err = fn()
	if err == nil || !errors.Is(err, db.ErrQuery) {
		return err
	}
	if r.db.Generation() == gen && !db.IsMissingStatement(err) {
		return err
	}

	log.Warn("Statement failed after reconnect, rebuilding prepared statements",
		zap.Uint64("preparedGeneration", gen),
		zap.Error(err),
	)
	r.invalidate()
	if _, err := r.prepareStatements(ctx); err != nil {
		return err
	}
	return fn()
}

// maxPrepareRounds bounds how often the catalog is rebuilt when the
// connection keeps dropping while it is being prepared.
const maxPrepareRounds = 3

// prepareStatements returns the connection generation the catalog is valid for.
func (r *LotRepository) prepareStatements(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// the flag is a hint; the generation decides
	if r.db.CheckAndClearReconnectFlag() || r.db.Generation() != r.preparedGen {
		r.prepared = false
	}
	if r.prepared {
		return r.preparedGen, nil
	}

	for round := 0; round < maxPrepareRounds; round++ {
		var gen uint64
		for i, s := range statements {
			if err := r.db.Prepare(ctx, s.name, s.sql); err != nil {
				return 0, fmt.Errorf("prepare lot statements: %w", err)
			}
			if i == 0 {
				gen = r.db.Generation()
			}
		}
		// a reconnect in the middle loses what was prepared before it
		if r.db.Generation() == gen {
			r.prepared = true
			r.preparedGen = gen
			log.Debug("Lot statements prepared", zap.Int("count", len(statements)), zap.Uint64("generation", gen))
			return gen, nil
		}
		log.Warn("Connection changed while preparing lot statements, starting over", zap.Int("round", round+1))
	}
	return 0, fmt.Errorf("prepare lot statements: connection kept changing after %d rounds: %w", maxPrepareRounds, db.ErrConnection)
}

func (r *LotRepository) invalidate() {
	r.mu.Lock()
	r.prepared = false
	r.mu.Unlock()
}

// scanLot reads the columns in lotColumns order.
func scanLot(row pgx.Row) (*domain.Lot, error) {
	lot := &domain.Lot{}
	var currentPrice decimal.NullDecimal

	err := row.Scan(
		&lot.ID,
		&lot.Name,
		&lot.Description,
		&lot.StartPrice,
		&currentPrice,
		&lot.OwnerID,
		&lot.CreatedAt,
		&lot.AuctionEndDate,
	)
	if err != nil {
		// a column that no longer maps onto the entity means the schema drifted
		log.Error("Failed to map lot row", zap.Error(err))
		return nil, fmt.Errorf("scan lot row: %w", err)
	}

	if currentPrice.Valid {
		p := currentPrice.Decimal
		lot.CurrentPrice = &p
	}
	return lot, nil
}

func nullablePrice(p *decimal.Decimal) decimal.NullDecimal {
	if p == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *p, Valid: true}
}
