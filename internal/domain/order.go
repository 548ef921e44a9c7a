package domain

import (
	"strings"
	"time"
)

// OrderLine представляет одну позицию заказа.
type OrderLine struct {
	// SKU: внешний идентификатор товара.
	SKU string
	// PriceMinor: цена за единицу в минимальных денежных единицах (например, копейки).
	PriceMinor int64
	// Qty: запрошенное количество единиц товара.
	Qty int32
}

// Order: принятый заказ. После сохранения не изменяется.
type Order struct {
	// ID назначается хранилищем при сохранении.
	ID string
	// OrderNumber генерируется при допуске заказа и глобально уникален.
	OrderNumber string
	Lines       []OrderLine
	CreatedAt   time.Time
}

// ValidateLines проверяет входные позиции заказа и возвращает список замечаний.
func ValidateLines(lines []OrderLine) []error {
	var errs []error

	if len(lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	for _, line := range lines {
		if strings.TrimSpace(line.SKU) == "" {
			errs = append(errs, ErrLineSKURequired)
		}
		if line.Qty < 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.PriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
	}

	return errs
}

// ValidateInvariants проверяет инварианты уже допущенного заказа.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.OrderNumber == "" {
		errs = append(errs, ErrOrderNumberRequired)
	}
	errs = append(errs, ValidateLines(o.Lines)...)

	return errs
}

// NormalizeLines возвращает копию позиций с SKU без пробелов по краям.
func NormalizeLines(lines []OrderLine) []OrderLine {
	out := CloneLines(lines)
	for i := range out {
		out[i].SKU = strings.TrimSpace(out[i].SKU)
	}
	return out
}

// CloneLines возвращает копию позиций, чтобы хранилища не делили срез с вызывающим.
func CloneLines(lines []OrderLine) []OrderLine {
	if lines == nil {
		return nil
	}
	out := make([]OrderLine, len(lines))
	copy(out, lines)
	return out
}
