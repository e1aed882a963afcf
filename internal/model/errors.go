package model

import "errors"

// ErrInvalidInput возвращается при некорректных суммах, процентах или действиях.
var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientBalance возвращается, если сумма заявки превышает доступный баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidState возвращается при попытке перехода из неподходящего статуса.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrAlreadyPaid возвращается, если начисление уже не находится в статусе available.
	ErrAlreadyPaid = errors.New("earning already paid out")
	// ErrConcurrentModification возвращается, если статус изменился после чтения.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrNotFound возвращается, если запрошенная сущность не найдена.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEarning возвращается при повторной регистрации начисления по позиции заказа.
	ErrDuplicateEarning = errors.New("earning already recorded")
)
