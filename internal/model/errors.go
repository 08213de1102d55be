package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound возвращается, если запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrOrderNotFound возвращается, если заказ для выгрузки не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrLinesUnavailable возвращается, если не удалось прочитать позиции заказа.
	ErrLinesUnavailable = errors.New("error fetching products")
	// ErrOrderFinalized возвращается при попытке изменить завершённый заказ.
	ErrOrderFinalized = errors.New("order is finalized")
	// ErrOrderNotFinalized возвращается при попытке переоткрыть незавершённый заказ.
	ErrOrderNotFinalized = errors.New("order is not finalized")
	// ErrInvalidInput возвращается при некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
)

// LineInsertError собирает ошибки вставки позиций заказа.
type LineInsertError struct {
	OrderID int64
	Failed  int
	Total   int
	Err     error
}

func (e *LineInsertError) Error() string {
	return fmt.Sprintf("order %d: %d of %d line items failed: %v", e.OrderID, e.Failed, e.Total, e.Err)
}

func (e *LineInsertError) Unwrap() error { return e.Err }
