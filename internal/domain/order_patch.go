package domain

import (
	"strings"

	"cloud.google.com/go/civil"
)

// OrderPatch changes the descriptive fields of an order. Nil fields are left
// as they are. The order date is part of the history and is amended there.
type OrderPatch struct {
	CustomerName     *string
	ProductionType   *string
	ProductName      *string
	ProductCode      *string
	PatternCode      *string
	Quantity         *int
	Factory          *string
	ExpectedDelivery *civil.Date
	Notes            *string
}

// Update applies p and returns the names of the fields that were set. The
// order is left untouched when the patched fields fail validation.
func (o *Order) Update(p OrderPatch) ([]string, error) {
	next := *o
	var fields []string

	setString := func(name string, src *string, dst *string) {
		if src == nil {
			return
		}
		*dst = strings.TrimSpace(*src)
		fields = append(fields, name)
	}
	setString("customer_name", p.CustomerName, &next.CustomerName)
	setString("production_type", p.ProductionType, &next.Product.ProductionType)
	setString("product_name", p.ProductName, &next.Product.ProductName)
	setString("product_code", p.ProductCode, &next.Product.ProductCode)
	setString("pattern_code", p.PatternCode, &next.Product.PatternCode)
	if p.Quantity != nil {
		next.Product.Quantity = *p.Quantity
		fields = append(fields, "quantity")
	}
	setString("factory", p.Factory, &next.Product.Factory)
	if p.ExpectedDelivery != nil {
		d := *p.ExpectedDelivery
		next.Product.ExpectedDelivery = &d
		fields = append(fields, "expected_delivery")
	}
	setString("notes", p.Notes, &next.Product.Notes)

	if len(fields) == 0 {
		return nil, newError(KindInvalidOrder, "no fields to update")
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	o.CustomerName = next.CustomerName
	o.Product = next.Product
	return fields, nil
}
