// Package pricing вычисляет производные суммы заказов.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/dental-lab/internal/model"
)

// PriceFunc возвращает цену изделия и признак того, что изделие известно.
type PriceFunc func(productID int64) (decimal.Decimal, bool)

// Subtotal возвращает сумму quantity*price по всем позициям.
// Неизвестное изделие даёт нулевой вклад.
func Subtotal(lines []model.LineItem, priceOf PriceFunc) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		price, ok := priceOf(l.ProductID)
		if !ok {
			continue
		}
		sum = sum.Add(l.Quantity.Mul(price))
	}
	return sum
}

// Total возвращает сумму заказа за вычетом скидки. Результат не ограничивается
// снизу: скидка больше суммы позиций даёт отрицательный итог.
func Total(lines []model.LineItem, discount decimal.Decimal, priceOf PriceFunc) decimal.Decimal {
	return Subtotal(lines, priceOf).Sub(discount)
}

// LineTotal возвращает стоимость одной строки выгрузки.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}

// Catalog строит PriceFunc по списку изделий.
func Catalog(products []model.Product) PriceFunc {
	prices := make(map[int64]decimal.Decimal, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}
	return func(id int64) (decimal.Decimal, bool) {
		p, ok := prices[id]
		return p, ok
	}
}
