package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

const earningColumns = `id, vendor_id, order_id, order_item_id, gross_amount, platform_fee_percentage,
	commission_version, platform_fee, net_earnings, status, earning_date, available_date,
	paid_out_at, payout_request_id`

const payoutColumns = `id, vendor_id, requested_amount, available_balance, status, reviewed_by,
	reviewed_at, admin_notes, payment_reference, transfer_id, transaction_fee, failure_reason,
	completed_at, failed_at, created_at, updated_at`

// querier покрывает общее подмножество пула и транзакции.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgTx реализует операции внутри транзакции PostgreSQL.
type pgTx struct {
	tx pgx.Tx
}

// LockVendor создаёт строку продавца при первом обращении и блокирует её до конца транзакции.
func (t *pgTx) LockVendor(ctx context.Context, vendorID int64) (*model.Vendor, error) {
	_, err := t.tx.Exec(ctx, `INSERT INTO vendors (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("ensure vendor: %w", err)
	}

	var v model.Vendor
	err = t.tx.QueryRow(ctx,
		`SELECT id, total_earnings, available_balance, pending_balance, reserved_balance,
		        total_paid_out, total_transaction_fees, updated_at
		 FROM vendors WHERE id = $1 FOR UPDATE`,
		vendorID,
	).Scan(&v.ID, &v.TotalEarnings, &v.AvailableBalance, &v.PendingBalance, &v.ReservedBalance,
		&v.TotalPaidOut, &v.TotalTransactionFees, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("lock vendor for update: %w", err)
	}
	return &v, nil
}

// UpdateVendor сохраняет балансы продавца.
func (t *pgTx) UpdateVendor(ctx context.Context, v *model.Vendor) error {
	if !v.Balanced() {
		return fmt.Errorf("vendor %d balances do not add up", v.ID)
	}

	_, err := t.tx.Exec(ctx,
		`UPDATE vendors
		 SET total_earnings = $2, available_balance = $3, pending_balance = $4, reserved_balance = $5,
		     total_paid_out = $6, total_transaction_fees = $7, updated_at = now()
		 WHERE id = $1`,
		v.ID, v.TotalEarnings, v.AvailableBalance, v.PendingBalance, v.ReservedBalance,
		v.TotalPaidOut, v.TotalTransactionFees,
	)
	if err != nil {
		return fmt.Errorf("update vendor: %w", err)
	}
	return nil
}

// InsertEarning сохраняет начисление. Повтор позиции заказа возвращает model.ErrDuplicateEarning.
func (t *pgTx) InsertEarning(ctx context.Context, e *model.VendorEarning) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO vendor_earnings (vendor_id, order_id, order_item_id, gross_amount, platform_fee_percentage,
		     commission_version, platform_fee, net_earnings, status, earning_date, available_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		e.VendorID, e.OrderID, e.OrderItemID, e.GrossAmount, e.PlatformFeePercentage,
		e.CommissionVersion, e.PlatformFee, e.NetEarnings, string(e.Status), e.EarningDate, e.AvailableDate,
	).Scan(&e.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: order item %d", model.ErrDuplicateEarning, e.OrderItemID)
		}
		return fmt.Errorf("insert earning: %w", err)
	}
	return nil
}

// MaturePendingEarnings переводит созревшие начисления в available и возвращает их сумму и количество.
func (t *pgTx) MaturePendingEarnings(ctx context.Context, vendorID int64, asOf time.Time) (int64, int, error) {
	var (
		amount int64
		count  int
	)
	err := t.tx.QueryRow(ctx,
		`WITH moved AS (
		     UPDATE vendor_earnings
		     SET status = $3
		     WHERE vendor_id = $1 AND status = $4 AND available_date <= $2
		     RETURNING net_earnings
		 )
		 SELECT COALESCE(SUM(net_earnings), 0), COUNT(*) FROM moved`,
		vendorID, asOf, string(model.EarningStatusAvailable), string(model.EarningStatusPending),
	).Scan(&amount, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("mature earnings: %w", err)
	}
	return amount, count, nil
}

// ListAvailableEarnings возвращает доступные начисления продавца от старых к новым и блокирует их.
func (t *pgTx) ListAvailableEarnings(ctx context.Context, vendorID int64) ([]model.VendorEarning, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+earningColumns+`
		 FROM vendor_earnings
		 WHERE vendor_id = $1 AND status = $2
		 ORDER BY earning_date, id
		 FOR UPDATE`,
		vendorID, string(model.EarningStatusAvailable),
	)
	if err != nil {
		return nil, fmt.Errorf("select available earnings: %w", err)
	}
	return collectEarnings(rows)
}

// MarkEarningsPaidOut помечает доступные начисления продавца выплаченными и возвращает число изменённых строк.
func (t *pgTx) MarkEarningsPaidOut(ctx context.Context, ids []int64, vendorID, payoutRequestID int64, at time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE vendor_earnings
		 SET status = $4, paid_out_at = $5, payout_request_id = $3
		 WHERE id = ANY($1) AND vendor_id = $2 AND status = $6`,
		ids, vendorID, payoutRequestID, string(model.EarningStatusPaidOut), at, string(model.EarningStatusAvailable),
	)
	if err != nil {
		return 0, fmt.Errorf("mark earnings paid out: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SumClaimedEarnings возвращает сумму начислений, уже закреплённых за заявкой.
func (t *pgTx) SumClaimedEarnings(ctx context.Context, payoutRequestID int64) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(net_earnings), 0)::BIGINT
		 FROM vendor_earnings
		 WHERE payout_request_id = $1`,
		payoutRequestID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum claimed earnings: %w", err)
	}
	return sum, nil
}

// GetPayoutRequest читает заявку внутри транзакции.
func (t *pgTx) GetPayoutRequest(ctx context.Context, id int64) (*model.PayoutRequest, error) {
	return getPayoutRequest(ctx, t.tx, id)
}

// InsertPayoutRequest сохраняет новую заявку на выплату.
func (t *pgTx) InsertPayoutRequest(ctx context.Context, r *model.PayoutRequest) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO payout_requests (vendor_id, requested_amount, available_balance, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		r.VendorID, r.RequestedAmount, r.AvailableBalance, string(r.Status), r.CreatedAt, r.UpdatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert payout request: %w", err)
	}
	return nil
}

// UpdatePayoutRequest сохраняет заявку, только если её статус в БД равен expected.
func (t *pgTx) UpdatePayoutRequest(ctx context.Context, r *model.PayoutRequest, expected model.PayoutStatus) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE payout_requests
		 SET status = $3, reviewed_by = $4, reviewed_at = $5, admin_notes = $6, payment_reference = $7,
		     transfer_id = $8, transaction_fee = $9, failure_reason = $10, completed_at = $11,
		     failed_at = $12, updated_at = $13
		 WHERE id = $1 AND status = $2`,
		r.ID, string(expected), string(r.Status), r.ReviewedBy, r.ReviewedAt, r.AdminNotes, r.PaymentReference,
		r.TransferID, r.TransactionFee, r.FailureReason, r.CompletedAt, r.FailedAt, r.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update payout request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertPayoutHistory сохраняет запись о завершённой выплате.
func (t *pgTx) InsertPayoutHistory(ctx context.Context, h *model.PayoutHistory) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO payout_history (payout_request_id, vendor_id, amount, transaction_fee, net_amount,
		     status, payment_reference, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		h.PayoutRequestID, h.VendorID, h.Amount, h.TransactionFee, h.NetAmount,
		string(h.Status), h.PaymentReference, h.CreatedAt,
	).Scan(&h.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: payout request %d already settled", model.ErrConcurrentModification, h.PayoutRequestID)
		}
		return fmt.Errorf("insert payout history: %w", err)
	}
	return nil
}

func getPayoutRequest(ctx context.Context, q querier, id int64) (*model.PayoutRequest, error) {
	p, err := scanPayoutRequest(q.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payout request %d", model.ErrNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

func scanPayoutRequest(row pgx.Row) (*model.PayoutRequest, error) {
	var (
		p      model.PayoutRequest
		status string
	)
	err := row.Scan(&p.ID, &p.VendorID, &p.RequestedAmount, &p.AvailableBalance, &status, &p.ReviewedBy,
		&p.ReviewedAt, &p.AdminNotes, &p.PaymentReference, &p.TransferID, &p.TransactionFee, &p.FailureReason,
		&p.CompletedAt, &p.FailedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payout request: %w", err)
	}
	p.Status = model.PayoutStatus(status)
	return &p, nil
}

func collectEarnings(rows pgx.Rows) ([]model.VendorEarning, error) {
	defer rows.Close()

	var res []model.VendorEarning
	for rows.Next() {
		var (
			e      model.VendorEarning
			status string
		)
		if err := rows.Scan(&e.ID, &e.VendorID, &e.OrderID, &e.OrderItemID, &e.GrossAmount, &e.PlatformFeePercentage,
			&e.CommissionVersion, &e.PlatformFee, &e.NetEarnings, &status, &e.EarningDate, &e.AvailableDate,
			&e.PaidOutAt, &e.PayoutRequestID); err != nil {
			return nil, fmt.Errorf("scan earning: %w", err)
		}
		e.Status = model.EarningStatus(status)
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
