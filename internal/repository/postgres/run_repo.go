package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"gstrecon/internal/domain"
	"gstrecon/internal/port"
)

// insertBatchSize keeps multi-row inserts well under the 65535 bind parameter limit.
const insertBatchSize = 500

const uniqueViolation = "23505"

type runRepo struct {
	db *sqlx.DB
}

// NewRunRepo creates a new PostgreSQL-backed RunRepository.
func NewRunRepo(db *sqlx.DB) port.RunRepository {
	return &runRepo{db: db}
}

type runRow struct {
	ID          uuid.UUID `db:"id"`
	Fingerprint string    `db:"fingerprint"`
	Label       string    `db:"label"`
	RecordCount int       `db:"record_count"`
	domain.ReconciliationStats
	Issues     []byte    `db:"issues"`
	Duplicates []byte    `db:"duplicates"`
	ReportKey  string    `db:"report_key"`
	DurationMs int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r *runRow) toDomain() (*domain.Run, error) {
	run := &domain.Run{
		ID:          r.ID,
		Fingerprint: r.Fingerprint,
		Label:       r.Label,
		RecordCount: r.RecordCount,
		Stats:       r.ReconciliationStats,
		ReportKey:   r.ReportKey,
		DurationMs:  r.DurationMs,
		CreatedAt:   r.CreatedAt,
	}
	if err := json.Unmarshal(r.Issues, &run.Issues); err != nil {
		return nil, fmt.Errorf("decoding issues: %w", err)
	}
	if err := json.Unmarshal(r.Duplicates, &run.Duplicates); err != nil {
		return nil, fmt.Errorf("decoding duplicates: %w", err)
	}
	return run, nil
}

type groupRow struct {
	RunID         uuid.UUID          `db:"run_id"`
	Position      int                `db:"position"`
	Key           domain.IdentityKey `db:"identity_key"`
	Status        domain.GroupStatus `db:"status"`
	SupplierGSTIN string             `db:"supplier_gstin"`
	InvoiceDate   time.Time          `db:"invoice_date"`
	Payload       []byte             `db:"payload"`
}

type mismatchRow struct {
	RunID    uuid.UUID `db:"run_id"`
	Position int       `db:"position"`
	domain.MismatchRecord
}

type vendorRow struct {
	RunID    uuid.UUID `db:"run_id"`
	Position int       `db:"position"`
	domain.VendorRiskRecord
}

const runColumns = `id, fingerprint, label, record_count, total_invoices, matched, mismatches, missing,
	total_itc_claimed, leakage_risk, compliance_score, high_risk_vendors, issues, duplicates,
	report_key, duration_ms, created_at`

const insertGroupQuery = `INSERT INTO reconciliation_groups
	(run_id, position, identity_key, status, supplier_gstin, invoice_date, payload)
	VALUES (:run_id, :position, :identity_key, :status, :supplier_gstin, :invoice_date, :payload)`

const insertMismatchQuery = `INSERT INTO mismatch_records
	(run_id, position, identity_key, status, invoice_number, invoice_date, supplier_gstin, vendor_name,
	 amount_diff, tax_diff, root_cause, severity, risk_score, risk_level, source1, source2, explanation)
	VALUES (:run_id, :position, :identity_key, :status, :invoice_number, :invoice_date, :supplier_gstin,
	 :vendor_name, :amount_diff, :tax_diff, :root_cause, :severity, :risk_score, :risk_level, :source1,
	 :source2, :explanation)`

const insertVendorQuery = `INSERT INTO vendor_risks
	(run_id, position, gstin, vendor_name, invoice_count, mismatch_count, total_value, risk_score,
	 prior_risk_score, trend, predicted_risk, compliance_score)
	VALUES (:run_id, :position, :gstin, :vendor_name, :invoice_count, :mismatch_count, :total_value,
	 :risk_score, :prior_risk_score, :trend, :predicted_risk, :compliance_score)`

func (r *runRepo) Create(ctx context.Context, run *domain.Run, snap *domain.Snapshot) error {
	issues, err := json.Marshal(run.Issues)
	if err != nil {
		return fmt.Errorf("runRepo.Create issues: %w", err)
	}
	duplicates, err := json.Marshal(run.Duplicates)
	if err != nil {
		return fmt.Errorf("runRepo.Create duplicates: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("runRepo.Create begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	s := run.Stats
	_, err = tx.ExecContext(ctx,
		`INSERT INTO reconciliation_runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		run.ID, run.Fingerprint, run.Label, run.RecordCount, s.TotalInvoices, s.Matched, s.Mismatches,
		s.Missing, s.TotalITCClaimed, s.LeakageRisk, s.ComplianceScore, s.HighRiskVendors, issues,
		duplicates, run.ReportKey, run.DurationMs, run.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("runRepo.Create: %w", domain.ErrRunInProgress)
		}
		return fmt.Errorf("runRepo.Create run: %w", err)
	}

	groups := make([]groupRow, len(snap.Groups))
	for i := range snap.Groups {
		g := &snap.Groups[i]
		payload, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("runRepo.Create group %s: %w", g.Key, err)
		}
		groups[i] = groupRow{
			RunID:         run.ID,
			Position:      i,
			Key:           g.Key,
			Status:        g.Status,
			SupplierGSTIN: g.SupplierGSTIN,
			InvoiceDate:   g.InvoiceDate,
			Payload:       payload,
		}
	}
	if err := insertBatches(ctx, tx, insertGroupQuery, groups); err != nil {
		return fmt.Errorf("runRepo.Create groups: %w", err)
	}

	mismatches := make([]mismatchRow, len(snap.Mismatches))
	for i := range snap.Mismatches {
		mismatches[i] = mismatchRow{RunID: run.ID, Position: i, MismatchRecord: snap.Mismatches[i]}
	}
	if err := insertBatches(ctx, tx, insertMismatchQuery, mismatches); err != nil {
		return fmt.Errorf("runRepo.Create mismatches: %w", err)
	}

	vendors := make([]vendorRow, len(snap.Vendors))
	for i := range snap.Vendors {
		vendors[i] = vendorRow{RunID: run.ID, Position: i, VendorRiskRecord: snap.Vendors[i]}
	}
	if err := insertBatches(ctx, tx, insertVendorQuery, vendors); err != nil {
		return fmt.Errorf("runRepo.Create vendors: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("runRepo.Create commit: %w", err)
	}
	return nil
}

func insertBatches[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *runRepo) getOne(ctx context.Context, op, where string, arg any) (*domain.Run, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, "SELECT "+runColumns+" FROM reconciliation_runs WHERE "+where, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("runRepo.%s: %w", op, err)
	}
	run, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("runRepo.%s: %w", op, err)
	}
	return run, nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	return r.getOne(ctx, "GetByID", "id = $1", id)
}

func (r *runRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Run, error) {
	return r.getOne(ctx, "GetByFingerprint", "fingerprint = $1", fingerprint)
}

func (r *runRepo) List(ctx context.Context, offset, limit int) ([]domain.Run, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reconciliation_runs"); err != nil {
		return nil, 0, fmt.Errorf("runRepo.List count: %w", err)
	}

	var rows []runRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT "+runColumns+" FROM reconciliation_runs ORDER BY created_at DESC, id LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("runRepo.List: %w", err)
	}

	runs := make([]domain.Run, 0, len(rows))
	for i := range rows {
		run, err := rows[i].toDomain()
		if err != nil {
			return nil, 0, fmt.Errorf("runRepo.List: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, total, nil
}

// whereBuilder accumulates an AND-joined WHERE clause with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

func newWhere(runID uuid.UUID) *whereBuilder {
	return &whereBuilder{clauses: []string{"run_id = $1"}, args: []any{runID}}
}

func (w *whereBuilder) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) String() string {
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT and OFFSET placeholders and returns the full argument list.
// A non-positive limit returns every row from offset on.
func (w *whereBuilder) page(offset, limit int) (clause string, args []any) {
	n := len(w.args)
	args = append([]any{}, w.args...)
	if limit <= 0 {
		return fmt.Sprintf(" OFFSET $%d", n+1), append(args, offset)
	}
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), append(args, limit, offset)
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

func (r *runRepo) ListGroups(ctx context.Context, runID uuid.UUID, filter *domain.GroupFilter) ([]domain.ReconciliationGroup, int, error) {
	w := newWhere(runID)
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reconciliation_groups "+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("runRepo.ListGroups count: %w", err)
	}

	pageClause, args := w.page(filter.Offset, filter.Limit)
	var payloads [][]byte
	err := r.db.SelectContext(ctx, &payloads,
		"SELECT payload FROM reconciliation_groups "+w.String()+" ORDER BY position"+pageClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("runRepo.ListGroups: %w", err)
	}

	groups := make([]domain.ReconciliationGroup, len(payloads))
	for i, p := range payloads {
		if err := json.Unmarshal(p, &groups[i]); err != nil {
			return nil, 0, fmt.Errorf("runRepo.ListGroups decode: %w", err)
		}
	}
	return groups, total, nil
}

func (r *runRepo) ListMismatches(ctx context.Context, runID uuid.UUID, filter *domain.MismatchFilter) ([]domain.MismatchRecord, int, error) {
	w := newWhere(runID)
	if filter.RiskLevel != "" {
		w.add("risk_level = $%d", filter.RiskLevel)
	}
	if filter.RootCause != "" {
		w.add("root_cause = $%d", filter.RootCause)
	}
	if strings.TrimSpace(filter.Query) != "" {
		w.add("(invoice_number ILIKE $%[1]d OR vendor_name ILIKE $%[1]d OR supplier_gstin ILIKE $%[1]d)",
			likePattern(filter.Query))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM mismatch_records "+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("runRepo.ListMismatches count: %w", err)
	}

	order := "position"
	if col, ok := domain.MismatchSortColumns[filter.SortBy]; ok {
		dir := "ASC"
		if filter.SortDesc {
			dir = "DESC"
		}
		order = col + " " + dir + ", position"
	}

	pageClause, args := w.page(filter.Offset, filter.Limit)
	var rows []mismatchRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM mismatch_records "+w.String()+" ORDER BY "+order+pageClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("runRepo.ListMismatches: %w", err)
	}

	out := make([]domain.MismatchRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].MismatchRecord
	}
	return out, total, nil
}

func (r *runRepo) ListVendors(ctx context.Context, runID uuid.UUID, filter *domain.VendorFilter) ([]domain.VendorRiskRecord, int, error) {
	w := newWhere(runID)
	if filter.RiskLevel != "" {
		w.add("predicted_risk = $%d", filter.RiskLevel)
	}
	if strings.TrimSpace(filter.Query) != "" {
		w.add("(gstin ILIKE $%[1]d OR vendor_name ILIKE $%[1]d)", likePattern(filter.Query))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM vendor_risks "+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("runRepo.ListVendors count: %w", err)
	}

	pageClause, args := w.page(filter.Offset, filter.Limit)
	var rows []vendorRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM vendor_risks "+w.String()+" ORDER BY risk_score DESC, gstin, position"+pageClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("runRepo.ListVendors: %w", err)
	}

	out := make([]domain.VendorRiskRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].VendorRiskRecord
	}
	return out, total, nil
}

func (r *runRepo) LatestVendorScores(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		GSTIN     string `db:"gstin"`
		RiskScore int    `db:"risk_score"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT gstin, risk_score FROM vendor_risks
		 WHERE run_id = (SELECT id FROM reconciliation_runs ORDER BY created_at DESC, id LIMIT 1)`)
	if err != nil {
		return nil, fmt.Errorf("runRepo.LatestVendorScores: %w", err)
	}

	scores := make(map[string]int, len(rows))
	for _, row := range rows {
		scores[row.GSTIN] = row.RiskScore
	}
	return scores, nil
}

func (r *runRepo) SetReportKey(ctx context.Context, id uuid.UUID, key string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE reconciliation_runs SET report_key = $1 WHERE id = $2", key, id)
	if err != nil {
		return fmt.Errorf("runRepo.SetReportKey: %w", err)
	}
	return requireAffected(result)
}

func (r *runRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM reconciliation_runs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("runRepo.Delete: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}
