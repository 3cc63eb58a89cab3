package models

// OrderLine is one product on an order. Lines are never edited once the order
// is persisted; corrections are appended as new lines.
type OrderLine struct {
	ProductName     string   `json:"product_name"`
	Quantity        int      `json:"quantity"`
	UnitPrice       float64  `json:"unit_price"`
	UnitCost        float64  `json:"unit_cost"`
	Modifiers       []string `json:"modifiers"`
	Notes           string   `json:"notes,omitempty"`
	UnitPrepMinutes int      `json:"unit_prep_minutes"`
}

func (l OrderLine) Subtotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

func (l OrderLine) TotalCost() float64 {
	return float64(l.Quantity) * l.UnitCost
}

func (l OrderLine) PrepMinutes() int {
	return l.Quantity * l.UnitPrepMinutes
}

// OrderLineView carries no cost fields.
type OrderLineView struct {
	ProductName     string   `json:"product_name"`
	Quantity        int      `json:"quantity"`
	UnitPrice       float64  `json:"unit_price"`
	Subtotal        float64  `json:"subtotal"`
	Modifiers       []string `json:"modifiers"`
	Notes           string   `json:"notes,omitempty"`
	UnitPrepMinutes int      `json:"unit_prep_minutes"`
}

func LineViews(lines []OrderLine) []OrderLineView {
	views := make([]OrderLineView, 0, len(lines))
	for _, line := range lines {
		modifiers := line.Modifiers
		if modifiers == nil {
			modifiers = []string{}
		}
		views = append(views, OrderLineView{
			ProductName:     line.ProductName,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			Subtotal:        line.Subtotal(),
			Modifiers:       modifiers,
			Notes:           line.Notes,
			UnitPrepMinutes: line.UnitPrepMinutes,
		})
	}
	return views
}
