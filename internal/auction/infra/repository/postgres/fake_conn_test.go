package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/shared/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type lotRecord struct {
	id           int64
	name         string
	description  *string
	startPrice   decimal.Decimal
	currentPrice *decimal.Decimal
	ownerID      *string
	createdAt    time.Time
	auctionEnd   *time.Time
}

// fakeServer is an in-memory stand-in for the postgres instance behind every
// connection the dialer hands out. Prepared statements live per connection.
type fakeServer struct {
	mu sync.Mutex

	lots    map[int64]*lotRecord
	nextID  int64
	clock   time.Time
	schema  []string
	scanErr error

	dials    int
	prepares map[string]int
	conns    []*fakePgConn
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		lots:     make(map[int64]*lotRecord),
		nextID:   1,
		clock:    time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		prepares: make(map[string]int),
	}
}

func (s *fakeServer) dial(context.Context) (db.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	c := &fakePgConn{server: s, prepared: make(map[string]string)}
	s.conns = append(s.conns, c)
	return c, nil
}

// dropAll simulates the server closing every open connection.
func (s *fakeServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.closed = true
	}
}

// deallocateAll forgets every prepared statement on the live connections,
// as DEALLOCATE ALL or a pooler swapping backends would.
func (s *fakeServer) deallocateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if !c.closed {
			c.prepared = make(map[string]string)
		}
	}
}

// tick returns a strictly increasing timestamp so created_at ordering is deterministic.
func (s *fakeServer) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type fakePgConn struct {
	server   *fakeServer
	closed   bool
	prepared map[string]string
}

var errConnClosed = errors.New("conn closed")

func (c *fakePgConn) Ping(context.Context) error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	return nil
}

func (c *fakePgConn) IsClosed() bool {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	return c.closed
}

func (c *fakePgConn) Close(context.Context) error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakePgConn) Prepare(_ context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.closed {
		return nil, errConnClosed
	}
	// same name and sql is a no-op, as in pgx
	if existing, ok := c.prepared[name]; ok && existing == sql {
		return &pgconn.StatementDescription{Name: name, SQL: sql}, nil
	}
	c.prepared[name] = sql
	s.prepares[name]++
	return &pgconn.StatementDescription{Name: name, SQL: sql}, nil
}

func (c *fakePgConn) lookup(name string) error {
	if c.closed {
		return errConnClosed
	}
	if _, ok := c.prepared[name]; !ok {
		return &pgconn.PgError{Code: "26000", Message: fmt.Sprintf("prepared statement %q does not exist", name)}
	}
	return nil
}

func (c *fakePgConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if !strings.HasPrefix(sql, "lot_") {
		if c.closed {
			return pgconn.CommandTag{}, errConnClosed
		}
		s.schema = append(s.schema, sql)
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	}
	if err := c.lookup(sql); err != nil {
		return pgconn.CommandTag{}, err
	}

	switch sql {
	case stmtDelete:
		id := args[0].(int64)
		if _, ok := s.lots[id]; !ok {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}
		delete(s.lots, id)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("fake: unsupported exec %s", sql)
}

func (c *fakePgConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := c.lookup(sql); err != nil {
		return nil, err
	}

	var out []*lotRecord
	switch sql {
	case stmtSelectAll:
		for _, l := range s.lots {
			out = append(out, l)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].createdAt.Equal(out[j].createdAt) {
				return out[i].id > out[j].id
			}
			return out[i].createdAt.After(out[j].createdAt)
		})

	case stmtSelectByID:
		if l, ok := s.lots[args[0].(int64)]; ok {
			out = append(out, l)
		}

	case stmtInsert:
		l := &lotRecord{id: s.nextID, createdAt: s.tick()}
		s.nextID++
		assignMutable(l, args)
		s.lots[l.id] = l
		out = append(out, l)

	case stmtUpdate:
		if l, ok := s.lots[args[0].(int64)]; ok {
			assignMutable(l, args[1:])
			out = append(out, l)
		}

	case stmtUpdateBid:
		l, ok := s.lots[args[0].(int64)]
		// $2::numeric(12,2)
		amount := args[1].(decimal.Decimal).Round(2)
		if ok &&
			amount.GreaterThan(l.startPrice) &&
			(l.currentPrice == nil || l.currentPrice.LessThan(amount)) &&
			(l.auctionEnd == nil || l.auctionEnd.After(s.clock)) {
			l.currentPrice = &amount
			out = append(out, l)
		}

	default:
		return nil, fmt.Errorf("fake: unsupported query %s", sql)
	}

	rows := &fakeRows{idx: -1, scanErr: s.scanErr}
	for _, l := range out {
		cp := *l
		rows.records = append(rows.records, &cp)
	}
	return rows, nil
}

// assignMutable reads name, description, start_price, current_price, owner_id, auction_end_date.
func assignMutable(l *lotRecord, args []any) {
	l.name = args[0].(string)
	l.description = copyString(args[1].(*string))
	l.startPrice = args[2].(decimal.Decimal)
	if p := args[3].(decimal.NullDecimal); p.Valid {
		v := p.Decimal
		l.currentPrice = &v
	} else {
		l.currentPrice = nil
	}
	l.ownerID = copyString(args[4].(*string))
	if t := args[5].(*time.Time); t != nil {
		v := *t
		l.auctionEnd = &v
	} else {
		l.auctionEnd = nil
	}
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type fakeRows struct {
	records []*lotRecord
	idx     int
	scanErr error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.records)
}

func (r *fakeRows) Values() ([]any, error) {
	return nil, errors.New("fake: Values not supported")
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	if len(dest) != 8 {
		return fmt.Errorf("fake: expected 8 columns, got %d", len(dest))
	}
	l := r.records[r.idx]

	*dest[0].(*int64) = l.id
	*dest[1].(*string) = l.name
	*dest[2].(**string) = copyString(l.description)
	*dest[3].(*decimal.Decimal) = l.startPrice
	if l.currentPrice != nil {
		*dest[4].(*decimal.NullDecimal) = decimal.NullDecimal{Decimal: *l.currentPrice, Valid: true}
	} else {
		*dest[4].(*decimal.NullDecimal) = decimal.NullDecimal{}
	}
	*dest[5].(**string) = copyString(l.ownerID)
	*dest[6].(*time.Time) = l.createdAt
	if l.auctionEnd != nil {
		v := *l.auctionEnd
		*dest[7].(**time.Time) = &v
	} else {
		*dest[7].(**time.Time) = nil
	}
	return nil
}
