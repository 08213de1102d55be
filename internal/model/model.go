// Package model содержит доменные сущности зуботехнической лаборатории.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Doctor описывает врача-заказчика и его пациентов.
type Doctor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	UpdatedAt time.Time `json:"updated_at"`
	Patients  []Patient `json:"-"`
}

// Patient описывает пациента, принадлежащего ровно одному врачу.
type Patient struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	DoctorID  int64     `json:"doctor_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product описывает изделие лаборатории и его цену за единицу.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Technician описывает техника, закрывающего заказы.
type Technician struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusFinalized  OrderStatus = "FINALIZED"
	OrderStatusDelayed    OrderStatus = "DELAYED"
)

// StatusForDeadline возвращает статус незавершённого заказа по его сроку.
func StatusForDeadline(deadline, now time.Time) OrderStatus {
	if deadline.Before(now) {
		return OrderStatusDelayed
	}
	return OrderStatusInProgress
}

// LineItem описывает позицию заказа.
type LineItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Order описывает заказ ("comanda") лаборатории.
type Order struct {
	ID          int64           `json:"id"`
	DoctorID    int64           `json:"doctor_id"`
	PatientID   int64           `json:"patient_id"`
	StartDate   time.Time       `json:"start_date"`
	Deadline    time.Time       `json:"deadline"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	FinalizedAt *time.Time      `json:"finalized_at"`
	Status      OrderStatus     `json:"status"`
	Technician  *string         `json:"technician"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Lines   []LineItem `json:"-"`
	Invalid bool       `json:"-"`
}

// TechnicianName возвращает имя назначенного техника или пустую строку.
func (o Order) TechnicianName() string {
	if o.Technician == nil {
		return ""
	}
	return *o.Technician
}

// Clone возвращает копию заказа, не разделяющую срез позиций и указатели.
func (o Order) Clone() Order {
	c := o
	c.Lines = append([]LineItem(nil), o.Lines...)
	if o.FinalizedAt != nil {
		t := *o.FinalizedAt
		c.FinalizedAt = &t
	}
	if o.Technician != nil {
		s := *o.Technician
		c.Technician = &s
	}
	return c
}

// OrderState описывает изменяемую часть жизненного цикла заказа.
type OrderState struct {
	Status      OrderStatus
	FinalizedAt *time.Time
	Technician  *string
}

// Ref ссылается на врача или пациента либо по идентификатору, либо по имени
// новой записи. Заполнено ровно одно поле.
type Ref struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// RefID ссылается на существующую запись.
func RefID(id int64) Ref { return Ref{ID: id} }

// RefName ссылается на запись по имени; запись будет создана, если её нет.
func RefName(name string) Ref { return Ref{Name: strings.TrimSpace(name)} }

// IsNew сообщает, что ссылка задана именем.
func (r Ref) IsNew() bool { return r.ID == 0 }

// Valid сообщает, что заполнено ровно одно поле ссылки.
func (r Ref) Valid() bool {
	return (r.ID != 0) != (strings.TrimSpace(r.Name) != "")
}

// OrderDraft содержит данные для создания заказа.
type OrderDraft struct {
	Doctor    Ref
	Patient   Ref
	Lines     []LineItem
	StartDate time.Time
	Deadline  time.Time
	Discount  decimal.Decimal
}

// Snapshot содержит полное содержимое всех таблиц.
type Snapshot struct {
	Doctors     []Doctor
	Patients    []Patient
	Products    []Product
	Technicians []Technician
	Orders      []Order
	Lines       []LineItem
}
