package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SheetRow описывает одну позицию завершённого заказа для сводной выгрузки.
type SheetRow struct {
	OrderID     int64
	Patient     string
	Product     string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Status      OrderStatus
	FinalizedAt *time.Time
}

// SheetLine описывает строку изделия в листе врача.
type SheetLine struct {
	Product   string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// PatientLines группирует строки изделий одного пациента.
type PatientLines struct {
	Patient string
	Lines   []SheetLine
}

// OrderSheet содержит данные для выгрузки одного заказа.
type OrderSheet struct {
	OrderID  int64
	Doctor   string
	Patient  string
	Products []string
	Total    decimal.Decimal
}
