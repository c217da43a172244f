/*
Package sqlstore provides a database/sql implementation of the retail storage interfaces.

PURPOSE:
  Persists customers, products, invoices and invoice items, the derived
  rfm_segmentation table and the pipeline_runs audit table. The same code
  runs on SQLite (mattn/go-sqlite3, default) and PostgreSQL (lib/pq).

INTERFACES IMPLEMENTED:
  retail.EntityStore:       Idempotent upserts and batched phase loads
  retail.SegmentationStore: Join for the RFM engine, atomic derived-table replace
  retail.RunStore:          Pipeline run audit

KEY TABLES:
  customers:        customer_id PK
  products:         stock_code PK, unit_price as exact decimal
  invoices:         invoice_no PK, customer_id -> customers
  invoice_items:    no key, invoice_no -> invoices, stock_code -> products
  rfm_segmentation: one row per customer with at least one invoice
  pipeline_runs:    run audit, never cleared by Reset

IDEMPOTENCY:
  Upserts use INSERT ... ON CONFLICT DO NOTHING (both dialects). The first
  row stored for a key wins; later rows with the same key are no-ops.

REFERENTIAL INTEGRITY:
  Foreign keys are declared on the tables, and references are also checked
  before the write so the caller gets a retail.ReferentialError naming the
  missing key instead of a driver error.

DIALECTS:
  Queries are written with ? placeholders and rebound to $n for postgres.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is pinned to a single
  connection so ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlstore.Open(ctx, sqlstore.Options{Driver: "sqlite3", DSN: "rfm.db"})
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - retail/store.go: Interface definitions
  - retail/store/memory.go: In-memory implementation for testing
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/retail-rfm/retail"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	defaultConnectTimeout = 5 * time.Second
)

// Options configures Open.
type Options struct {
	Driver         string
	DSN            string
	ConnectTimeout time.Duration
}

// Store implements all storage interfaces on database/sql.
type Store struct {
	db     *sql.DB
	driver string
	mu     sync.RWMutex
}

var (
	_ retail.Store    = (*Store)(nil)
	_ retail.RunStore = (*Store)(nil)
)

// New opens a SQLite store at dbPath. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(context.Background(), Options{Driver: DriverSQLite, DSN: dbPath})
}

// Open connects, verifies the connection and creates missing tables.
// Connection failures are reported as *retail.ConnectivityError.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	dsn := opts.DSN
	switch opts.Driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, &retail.ConnectivityError{Op: "open database", Err: err}
	}
	if opts.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &retail.ConnectivityError{Op: "ping database", Err: err}
	}

	store := &Store{db: db, driver: opts.Driver}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = ":memory:"
	}
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_journal_mode=WAL"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) schema() []string {
	money := "TEXT"
	if s.driver == DriverPostgres {
		money = "NUMERIC"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
			customer_id BIGINT PRIMARY KEY,
			country TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			stock_code TEXT PRIMARY KEY,
			description TEXT,
			unit_price ` + money + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			invoice_no TEXT PRIMARY KEY,
			invoice_date TIMESTAMP NOT NULL,
			customer_id BIGINT NOT NULL REFERENCES customers(customer_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_customer
			ON invoices(customer_id)`,
		`CREATE TABLE IF NOT EXISTS invoice_items (
			invoice_no TEXT NOT NULL REFERENCES invoices(invoice_no),
			stock_code TEXT NOT NULL REFERENCES products(stock_code),
			quantity BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice
			ON invoice_items(invoice_no)`,
		`CREATE TABLE IF NOT EXISTS rfm_segmentation (
			customer_id BIGINT PRIMARY KEY,
			recency INTEGER NOT NULL,
			frequency INTEGER NOT NULL,
			monetary ` + money + ` NOT NULL,
			r_score INTEGER NOT NULL,
			f_score INTEGER NOT NULL,
			m_score INTEGER NOT NULL,
			rfm_score TEXT NOT NULL,
			segment TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rfm_segment
			ON rfm_segmentation(segment)`,
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id TEXT PRIMARY KEY,
			source TEXT,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			rows_read INTEGER DEFAULT 0,
			discarded INTEGER DEFAULT 0,
			skipped INTEGER DEFAULT 0,
			customers INTEGER DEFAULT 0,
			products INTEGER DEFAULT 0,
			invoices INTEGER DEFAULT 0,
			invoice_items INTEGER DEFAULT 0,
			segments INTEGER DEFAULT 0,
			error TEXT
		)`,
	}
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// RESET
// =============================================================================

// Reset drops and recreates the four entity tables in one transaction.
// rfm_segmentation is left alone; it is only ever swapped by ReplaceSegmentation.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"invoice_items", "invoices", "products", "customers"} {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	for _, stmt := range s.schema() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to recreate schema: %w", err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// ENTITY STORE (retail.EntityStore interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	insertCustomerSQL = `INSERT INTO customers (customer_id, country) VALUES (?, ?)
		ON CONFLICT (customer_id) DO NOTHING`
	insertProductSQL = `INSERT INTO products (stock_code, description, unit_price) VALUES (?, ?, ?)
		ON CONFLICT (stock_code) DO NOTHING`
	insertInvoiceSQL = `INSERT INTO invoices (invoice_no, invoice_date, customer_id) VALUES (?, ?, ?)
		ON CONFLICT (invoice_no) DO NOTHING`
	insertInvoiceItemSQL = `INSERT INTO invoice_items (invoice_no, stock_code, quantity) VALUES (?, ?, ?)`
)

// UpsertCustomer inserts a customer unless the id is already stored.
func (s *Store) UpsertCustomer(ctx context.Context, c retail.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec(ctx, s.db, insertCustomerSQL, c.CustomerID, c.Country)
}

// UpsertProduct inserts a product unless the stock code is already stored.
func (s *Store) UpsertProduct(ctx context.Context, p retail.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec(ctx, s.db, insertProductSQL, p.StockCode, p.Description, p.UnitPrice.String())
}

// UpsertInvoice inserts an invoice unless the number is already stored.
// The customer must exist.
func (s *Store) UpsertInvoice(ctx context.Context, inv retail.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireKey(ctx, s.db, "invoices", "customers", "customer_id", inv.CustomerID); err != nil {
		return err
	}
	return s.exec(ctx, s.db, insertInvoiceSQL, inv.InvoiceNo, inv.InvoiceDate.UTC(), inv.CustomerID)
}

// InsertInvoiceItem appends an item. Invoice and product must exist.
func (s *Store) InsertInvoiceItem(ctx context.Context, item retail.InvoiceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireKey(ctx, s.db, "invoice_items", "invoices", "invoice_no", item.InvoiceNo); err != nil {
		return err
	}
	if err := s.requireKey(ctx, s.db, "invoice_items", "products", "stock_code", item.StockCode); err != nil {
		return err
	}
	return s.exec(ctx, s.db, insertInvoiceItemSQL, item.InvoiceNo, item.StockCode, item.Quantity)
}

// LoadCustomers upserts all customers in one transaction.
func (s *Store) LoadCustomers(ctx context.Context, cs []retail.Customer) error {
	return s.batch(ctx, insertCustomerSQL, len(cs), nil, func(i int) []any {
		return []any{cs[i].CustomerID, cs[i].Country}
	})
}

// LoadProducts upserts all products in one transaction.
func (s *Store) LoadProducts(ctx context.Context, ps []retail.Product) error {
	return s.batch(ctx, insertProductSQL, len(ps), nil, func(i int) []any {
		return []any{ps[i].StockCode, ps[i].Description, ps[i].UnitPrice.String()}
	})
}

// LoadInvoices upserts all invoices in one transaction.
// Fails without writing anything if a customer is missing.
func (s *Store) LoadInvoices(ctx context.Context, invs []retail.Invoice) error {
	check := func(ctx context.Context, tx *sql.Tx) error {
		customers, err := keySet[int64](ctx, tx, "SELECT customer_id FROM customers")
		if err != nil {
			return err
		}
		for _, inv := range invs {
			if _, ok := customers[inv.CustomerID]; !ok {
				return &retail.ReferentialError{
					Entity: "invoices",
					Ref:    "customers",
					Key:    strconv.FormatInt(inv.CustomerID, 10),
				}
			}
		}
		return nil
	}
	return s.batch(ctx, insertInvoiceSQL, len(invs), check, func(i int) []any {
		return []any{invs[i].InvoiceNo, invs[i].InvoiceDate.UTC(), invs[i].CustomerID}
	})
}

// LoadInvoiceItems appends all items in one transaction.
// Fails without writing anything if an invoice or product is missing.
func (s *Store) LoadInvoiceItems(ctx context.Context, items []retail.InvoiceItem) error {
	check := func(ctx context.Context, tx *sql.Tx) error {
		invoices, err := keySet[string](ctx, tx, "SELECT invoice_no FROM invoices")
		if err != nil {
			return err
		}
		products, err := keySet[string](ctx, tx, "SELECT stock_code FROM products")
		if err != nil {
			return err
		}
		for _, item := range items {
			if _, ok := invoices[item.InvoiceNo]; !ok {
				return &retail.ReferentialError{Entity: "invoice_items", Ref: "invoices", Key: item.InvoiceNo}
			}
			if _, ok := products[item.StockCode]; !ok {
				return &retail.ReferentialError{Entity: "invoice_items", Ref: "products", Key: item.StockCode}
			}
		}
		return nil
	}
	return s.batch(ctx, insertInvoiceItemSQL, len(items), check, func(i int) []any {
		return []any{items[i].InvoiceNo, items[i].StockCode, items[i].Quantity}
	})
}

// batch runs check (if any) and then n executions of query inside one transaction.
func (s *Store) batch(ctx context.Context, query string, n int,
	check func(context.Context, *sql.Tx) error, args func(i int) []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if check != nil {
		if err := check(ctx, tx); err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(query))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return s.classify(err)
		}
	}

	return tx.Commit()
}

func (s *Store) exec(ctx context.Context, db execer, query string, args ...any) error {
	if _, err := db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return s.classify(err)
	}
	return nil
}

func (s *Store) requireKey(ctx context.Context, db execer, entity, table, column string, key any) error {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", table, column)
	if err := db.QueryRowContext(ctx, s.rebind(query), key).Scan(&count); err != nil {
		return fmt.Errorf("failed to look up %s: %w", table, err)
	}
	if count == 0 {
		return &retail.ReferentialError{Entity: entity, Ref: table, Key: fmt.Sprint(key)}
	}
	return nil
}

func keySet[K comparable](ctx context.Context, tx *sql.Tx, query string) (map[K]struct{}, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[K]struct{})
	for rows.Next() {
		var k K
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

// Counts returns row counts for every table.
func (s *Store) Counts(ctx context.Context) (retail.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c retail.Counts
	targets := []struct {
		table string
		dst   *int
	}{
		{"customers", &c.Customers},
		{"products", &c.Products},
		{"invoices", &c.Invoices},
		{"invoice_items", &c.InvoiceItems},
		{"rfm_segmentation", &c.Segments},
	}
	for _, t := range targets {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return retail.Counts{}, fmt.Errorf("failed to count %s: %w", t.table, err)
		}
	}
	return c, nil
}

// =============================================================================
// SEGMENTATION STORE (retail.SegmentationStore interface)
// =============================================================================

// InvoiceLines returns the customer/invoice/item/product join.
func (s *Store) InvoiceLines(ctx context.Context) ([]retail.InvoiceLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT c.customer_id, i.invoice_no, i.invoice_date, ii.quantity, p.unit_price
		FROM customers c
		JOIN invoices i ON c.customer_id = i.customer_id
		JOIN invoice_items ii ON i.invoice_no = ii.invoice_no
		JOIN products p ON ii.stock_code = p.stock_code
		ORDER BY c.customer_id, i.invoice_no
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()

	var lines []retail.InvoiceLine
	for rows.Next() {
		var (
			l     retail.InvoiceLine
			price string
		)
		if err := rows.Scan(&l.CustomerID, &l.InvoiceNo, &l.InvoiceDate, &l.Quantity, &price); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		l.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("invalid unit_price %q: %w", price, err)
		}
		l.InvoiceDate = l.InvoiceDate.UTC()
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ReplaceSegmentation swaps the derived table contents in one transaction.
func (s *Store) ReplaceSegmentation(ctx context.Context, records []retail.Segmentation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM rfm_segmentation"); err != nil {
		return fmt.Errorf("failed to clear rfm_segmentation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO rfm_segmentation
		(customer_id, recency, frequency, monetary, r_score, f_score, m_score, rfm_score, segment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.CustomerID, r.Recency, r.Frequency, r.Monetary.String(),
			r.RScore, r.FScore, r.MScore, r.RFMScore, r.Segment,
		); err != nil {
			return fmt.Errorf("failed to insert segmentation for %d: %w", r.CustomerID, err)
		}
	}

	return tx.Commit()
}

// ReadSegmentation returns the derived table ordered by customer id.
func (s *Store) ReadSegmentation(ctx context.Context) ([]retail.Segmentation, error) {
	return s.querySegmentation(ctx, "")
}

// GetSegmentation returns the derived row for one customer, or nil.
func (s *Store) GetSegmentation(ctx context.Context, customerID int64) (*retail.Segmentation, error) {
	rows, err := s.querySegmentation(ctx, "WHERE customer_id = ?", customerID)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Store) querySegmentation(ctx context.Context, where string, args ...any) ([]retail.Segmentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT customer_id, recency, frequency, monetary, r_score, f_score, m_score, rfm_score, segment
		FROM rfm_segmentation ` + where + `
		ORDER BY customer_id
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rfm_segmentation: %w", err)
	}
	defer rows.Close()

	var result []retail.Segmentation
	for rows.Next() {
		var (
			r        retail.Segmentation
			monetary string
		)
		if err := rows.Scan(&r.CustomerID, &r.Recency, &r.Frequency, &monetary,
			&r.RScore, &r.FScore, &r.MScore, &r.RFMScore, &r.Segment); err != nil {
			return nil, fmt.Errorf("failed to scan segmentation: %w", err)
		}
		r.Monetary, err = decimal.NewFromString(monetary)
		if err != nil {
			return nil, fmt.Errorf("invalid monetary %q: %w", monetary, err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// =============================================================================
// RUN STORE (retail.RunStore interface)
// =============================================================================

// SaveRun inserts or updates a pipeline run.
func (s *Store) SaveRun(ctx context.Context, run retail.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO pipeline_runs
		(id, source, status, started_at, finished_at, rows_read, discarded, skipped,
		 customers, products, invoices, invoice_items, segments, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			rows_read = excluded.rows_read,
			discarded = excluded.discarded,
			skipped = excluded.skipped,
			customers = excluded.customers,
			products = excluded.products,
			invoices = excluded.invoices,
			invoice_items = excluded.invoice_items,
			segments = excluded.segments,
			error = excluded.error
	`

	var finishedAt sql.NullString
	if run.FinishedAt != nil {
		finishedAt = sql.NullString{String: run.FinishedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		run.ID, run.Source, string(run.Status), run.StartedAt.UTC().Format(time.RFC3339), finishedAt,
		run.RowsRead, run.Discarded, run.Skipped,
		run.Counts.Customers, run.Counts.Products, run.Counts.Invoices, run.Counts.InvoiceItems,
		run.Counts.Segments, nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]retail.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, source, status, started_at, finished_at, rows_read, discarded, skipped,
		       customers, products, invoices, invoice_items, segments, error
		FROM pipeline_runs
		ORDER BY started_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []retail.Run
	for rows.Next() {
		var (
			r          retail.Run
			source     sql.NullString
			status     string
			startedAt  string
			finishedAt sql.NullString
			errText    sql.NullString
		)
		if err := rows.Scan(&r.ID, &source, &status, &startedAt, &finishedAt,
			&r.RowsRead, &r.Discarded, &r.Skipped,
			&r.Counts.Customers, &r.Counts.Products, &r.Counts.Invoices, &r.Counts.InvoiceItems,
			&r.Counts.Segments, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Source = source.String
		r.Status = retail.RunStatus(status)
		r.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run %s: started_at: %w", r.ID, err)
		}
		if finishedAt.Valid {
			t, err := time.Parse(time.RFC3339, finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to scan run %s: finished_at: %w", r.ID, err)
			}
			r.FinishedAt = &t
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// rebind rewrites ? placeholders to $1..$n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// classify maps driver foreign key violations to retail.ErrReferential.
func (s *Store) classify(err error) error {
	if isForeignKeyError(err) {
		return fmt.Errorf("%w: %v", retail.ErrReferential, err)
	}
	return err
}

func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "violates foreign key constraint")
}
