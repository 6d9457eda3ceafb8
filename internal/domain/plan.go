package domain

// Plan is a study program priced for a region. The catalogue is fixed at
// compile time; amounts are in major currency units.
type Plan struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// MinorAmount returns the plan price in the currency's minor unit, as payment
// gateways expect (kobo, cents, pence).
func (p Plan) MinorAmount() int64 {
	return p.Amount * 100
}

// The fixed plan catalogue.
var plans = []Plan{
	{ID: "nigeria", Name: "Nigeria Program", Amount: 30000, Currency: "NGN"},
	{ID: "african", Name: "African Program", Amount: 35000, Currency: "NGN"},
	{ID: "usa-canada", Name: "USA & Canada Program", Amount: 60, Currency: "USD"},
	{ID: "europe", Name: "Europe Program", Amount: 35, Currency: "GBP"},
}

// Plans returns the full catalogue.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByID looks up a plan. The second return is false for unknown ids.
func PlanByID(id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
