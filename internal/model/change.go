package model

import "encoding/json"

// Имена таблиц удалённого хранилища.
const (
	TableDoctors     = "doctors"
	TablePatients    = "patients"
	TableProducts    = "products"
	TableTechnicians = "technicians"
	TableOrders      = "orders"
	TableOrderLines  = "order_lines"
)

// Tables перечисляет все таблицы, на изменения которых подписывается хранилище.
var Tables = []string{
	TableDoctors,
	TablePatients,
	TableProducts,
	TableTechnicians,
	TableOrders,
	TableOrderLines,
}

// EventType описывает тип изменения строки.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Change описывает уведомление об изменении строки удалённой таблицы.
type Change struct {
	Table string          `json:"table"`
	Type  EventType       `json:"type"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}
