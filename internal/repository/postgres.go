// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
	"github.com/mmeshcher/marketplace-payouts/internal/service"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// Options содержит параметры подключения к БД.
type Options struct {
	DSN      string
	MaxConns int32
	// DefaultCommission записывается первой версией ставки комиссии, если ставок ещё нет.
	DefaultCommission decimal.Decimal
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(opts Options) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := r.seedCommission(ctx, opts.DefaultCommission); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) seedCommission(ctx context.Context, pct decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO commission_rates (percentage)
		 SELECT $1 WHERE NOT EXISTS (SELECT 1 FROM commission_rates)`,
		pct,
	)
	if err != nil {
		return fmt.Errorf("seed commission rate: %w", err)
	}
	return nil
}

// withRetry повторяет fn при временных ошибках БД. Бизнес-ошибки возвращаются сразу.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(retryDelays) {
			break
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет соединение с БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// InTx выполняет fn в транзакции READ COMMITTED. Продавец блокируется явно через LockVendor,
// поэтому более строгий уровень изоляции не нужен.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(tx service.Tx) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(&pgTx{tx: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetEarningsSummary возвращает балансы продавца и число подтверждённых и ожидающих заказов.
func (r *PostgresRepository) GetEarningsSummary(ctx context.Context, vendorID int64) (*model.EarningsSummary, error) {
	s := model.EarningsSummary{VendorID: vendorID}

	err := r.pool.QueryRow(ctx,
		`SELECT total_earnings, available_balance, pending_balance, reserved_balance, total_paid_out
		 FROM vendors WHERE id = $1`,
		vendorID,
	).Scan(&s.TotalEarnings, &s.AvailableBalance, &s.PendingBalance, &s.ReservedBalance, &s.TotalPaidOut)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("select vendor: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT
		     COUNT(DISTINCT order_id) FILTER (WHERE status <> $2),
		     COUNT(DISTINCT order_id) FILTER (WHERE status = $2)
		 FROM vendor_earnings
		 WHERE vendor_id = $1`,
		vendorID, string(model.EarningStatusPending),
	).Scan(&s.ConfirmedOrders, &s.PendingOrders)
	if err != nil {
		return nil, fmt.Errorf("count vendor orders: %w", err)
	}

	return &s, nil
}

// ListEarnings возвращает начисления продавца, новые первыми.
func (r *PostgresRepository) ListEarnings(ctx context.Context, vendorID int64, status *model.EarningStatus, limit int) ([]model.VendorEarning, error) {
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+earningColumns+`
		 FROM vendor_earnings
		 WHERE vendor_id = $1 AND ($2::text IS NULL OR status = $2)
		 ORDER BY earning_date DESC, id DESC
		 LIMIT $3`,
		vendorID, statusArg, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select earnings: %w", err)
	}
	return collectEarnings(rows)
}

// ListVendorsWithDueEarnings возвращает продавцов, у которых есть созревшие ожидающие начисления.
func (r *PostgresRepository) ListVendorsWithDueEarnings(ctx context.Context, asOf time.Time, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT vendor_id
		 FROM vendor_earnings
		 WHERE status = $1 AND available_date <= $2
		 ORDER BY vendor_id
		 LIMIT $3`,
		string(model.EarningStatusPending), asOf, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select vendors with due earnings: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan vendor id: %w", err)
	}
	return ids, nil
}

// GetPayoutRequest возвращает заявку на выплату по идентификатору.
func (r *PostgresRepository) GetPayoutRequest(ctx context.Context, id int64) (*model.PayoutRequest, error) {
	return getPayoutRequest(ctx, r.pool, id)
}

// ListPayoutRequests возвращает заявки по фильтру, старые первыми.
func (r *PostgresRepository) ListPayoutRequests(ctx context.Context, filter model.PayoutFilter) ([]model.PayoutRequest, error) {
	var statusArg *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusArg = &s
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+payoutColumns+`
		 FROM payout_requests
		 WHERE ($1::bigint IS NULL OR vendor_id = $1)
		   AND ($2::text IS NULL OR status = $2)
		 ORDER BY created_at, id
		 LIMIT $3`,
		filter.VendorID, statusArg, filter.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select payout requests: %w", err)
	}
	defer rows.Close()

	var res []model.PayoutRequest
	for rows.Next() {
		p, err := scanPayoutRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListPayoutHistory возвращает историю выплат продавца, новые первыми.
func (r *PostgresRepository) ListPayoutHistory(ctx context.Context, vendorID int64) ([]model.PayoutHistory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, payout_request_id, vendor_id, amount, transaction_fee, net_amount, status, payment_reference, created_at
		 FROM payout_history
		 WHERE vendor_id = $1
		 ORDER BY created_at DESC, id DESC`,
		vendorID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payout history: %w", err)
	}
	defer rows.Close()

	var res []model.PayoutHistory
	for rows.Next() {
		var (
			h      model.PayoutHistory
			status string
		)
		if err := rows.Scan(&h.ID, &h.PayoutRequestID, &h.VendorID, &h.Amount, &h.TransactionFee,
			&h.NetAmount, &status, &h.PaymentReference, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payout history: %w", err)
		}
		h.Status = model.PayoutStatus(status)
		res = append(res, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetCommissionRate возвращает последнюю версию ставки комиссии.
func (r *PostgresRepository) GetCommissionRate(ctx context.Context) (*model.CommissionRate, error) {
	var rate model.CommissionRate
	err := r.pool.QueryRow(ctx,
		`SELECT version, percentage, updated_by, updated_at
		 FROM commission_rates
		 ORDER BY version DESC
		 LIMIT 1`,
	).Scan(&rate.Version, &rate.Percentage, &rate.UpdatedBy, &rate.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: commission rate", model.ErrNotFound)
		}
		return nil, fmt.Errorf("select commission rate: %w", err)
	}
	return &rate, nil
}

// SetCommissionRate записывает новую версию ставки комиссии.
func (r *PostgresRepository) SetCommissionRate(ctx context.Context, percentage decimal.Decimal, updatedBy int64) (*model.CommissionRate, error) {
	var rate model.CommissionRate
	err := r.pool.QueryRow(ctx,
		`INSERT INTO commission_rates (percentage, updated_by)
		 VALUES ($1, $2)
		 RETURNING version, percentage, updated_by, updated_at`,
		percentage, updatedBy,
	).Scan(&rate.Version, &rate.Percentage, &rate.UpdatedBy, &rate.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert commission rate: %w", err)
	}
	return &rate, nil
}

// GetPlatformReport агрегирует начисления по дате начисления в интервале [from, to].
// from == nil означает отчёт за всё время.
func (r *PostgresRepository) GetPlatformReport(ctx context.Context, from *time.Time, to time.Time, top int) (*model.PlatformReport, error) {
	report := &model.PlatformReport{From: from, To: to}

	err := r.pool.QueryRow(ctx,
		`SELECT
		     COALESCE(SUM(platform_fee), 0),
		     COALESCE(SUM(net_earnings), 0),
		     COALESCE(SUM(gross_amount), 0),
		     COUNT(DISTINCT order_id)
		 FROM vendor_earnings
		 WHERE ($1::timestamptz IS NULL OR earning_date >= $1) AND earning_date <= $2`,
		from, to,
	).Scan(&report.TotalPlatformEarnings, &report.TotalVendorEarnings, &report.TotalGross, &report.TotalOrders)
	if err != nil {
		return nil, fmt.Errorf("aggregate earnings: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT vendor_id, SUM(net_earnings) AS net, COUNT(DISTINCT order_id)
		 FROM vendor_earnings
		 WHERE ($1::timestamptz IS NULL OR earning_date >= $1) AND earning_date <= $2
		 GROUP BY vendor_id
		 ORDER BY net DESC, vendor_id
		 LIMIT $3`,
		from, to, top,
	)
	if err != nil {
		return nil, fmt.Errorf("select top vendors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.VendorEarningsTotal
		if err := rows.Scan(&t.VendorID, &t.NetEarnings, &t.Orders); err != nil {
			return nil, fmt.Errorf("scan top vendor: %w", err)
		}
		report.TopEarningVendors = append(report.TopEarningVendors, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return report, nil
}
