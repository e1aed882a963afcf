package model

import "fmt"

// PayoutStatus описывает статус заявки на выплату.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusRejected   PayoutStatus = "rejected"
)

// PayoutAction описывает действие над заявкой на выплату.
type PayoutAction string

const (
	PayoutActionApprove  PayoutAction = "approve"
	PayoutActionReject   PayoutAction = "reject"
	PayoutActionComplete PayoutAction = "complete"
	PayoutActionFail     PayoutAction = "fail"
)

// Next возвращает статус, в который заявка переходит после действия.
//
//	pending    --approve-->  processing
//	pending    --reject--->  rejected
//	processing --complete->  completed
//	processing --fail----->  failed
//	processing --reject--->  rejected
func (s PayoutStatus) Next(action PayoutAction) (PayoutStatus, error) {
	switch s {
	case PayoutStatusPending:
		switch action {
		case PayoutActionApprove:
			return PayoutStatusProcessing, nil
		case PayoutActionReject:
			return PayoutStatusRejected, nil
		}
	case PayoutStatusProcessing:
		switch action {
		case PayoutActionComplete:
			return PayoutStatusCompleted, nil
		case PayoutActionFail:
			return PayoutStatusFailed, nil
		case PayoutActionReject:
			return PayoutStatusRejected, nil
		}
	case PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusRejected:
	}
	return s, fmt.Errorf("%w: cannot %s payout in status %s", ErrInvalidState, action, s)
}

// IsTerminal сообщает, является ли статус конечным.
func (s PayoutStatus) IsTerminal() bool {
	switch s {
	case PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusRejected:
		return true
	}
	return false
}

// ReleasesReservation сообщает, возвращает ли переход в статус зарезервированную сумму продавцу.
func (s PayoutStatus) ReleasesReservation() bool {
	return s == PayoutStatusRejected || s == PayoutStatusFailed
}

// ParsePayoutStatus разбирает строковый статус заявки.
func ParsePayoutStatus(v string) (PayoutStatus, error) {
	switch s := PayoutStatus(v); s {
	case PayoutStatusPending, PayoutStatusProcessing, PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusRejected:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown payout status %q", ErrInvalidInput, v)
}

// ParsePayoutAction разбирает строковое действие над заявкой.
func ParsePayoutAction(v string) (PayoutAction, error) {
	switch a := PayoutAction(v); a {
	case PayoutActionApprove, PayoutActionReject, PayoutActionComplete, PayoutActionFail:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown payout action %q", ErrInvalidInput, v)
}

// ParseEarningStatus разбирает строковый статус начисления.
func ParseEarningStatus(v string) (EarningStatus, error) {
	switch s := EarningStatus(v); s {
	case EarningStatusPending, EarningStatusAvailable, EarningStatusPaidOut:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown earning status %q", ErrInvalidInput, v)
}
