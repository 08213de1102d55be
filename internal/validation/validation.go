// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/dental-lab/internal/model"
)

const dateLayout = "2006-01-02"

// ErrMissingDates возвращается, если не задана одна из границ интервала.
var ErrMissingDates = errors.New("startDate and endDate required")

// ParseDate разбирает дату в формате YYYY-MM-DD или RFC 3339. Для даты без
// времени и endOfDay == true возвращается последний момент этого дня.
func ParseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		if endOfDay {
			return t.Add(24*time.Hour - time.Nanosecond), nil
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", model.ErrInvalidInput, s)
	}
	return t, nil
}

// ParseRange разбирает границы интервала выгрузки. Обе границы включаются.
func ParseRange(start, end string) (time.Time, time.Time, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return time.Time{}, time.Time{}, ErrMissingDates
	}

	from, err := ParseDate(start, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := ParseDate(end, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: endDate before startDate", model.ErrInvalidInput)
	}
	return from, to, nil
}

// Name проверяет, что имя не пустое, и возвращает его без крайних пробелов.
func Name(what, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s name is required", model.ErrInvalidInput, what)
	}
	return name, nil
}

// Quantity проверяет, что количество положительно.
func Quantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", model.ErrInvalidInput)
	}
	return nil
}

// Price проверяет, что цена не отрицательна.
func Price(p decimal.Decimal) error {
	if p.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", model.ErrInvalidInput)
	}
	return nil
}

// Discount проверяет, что скидка не отрицательна.
func Discount(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: discount must not be negative", model.ErrInvalidInput)
	}
	return nil
}
