package engine

// CostOpportunity is a managed-service or cost-saving note carried by a check.
// Value and Savings keep the JSON type the check reported; a missing value is "".
type CostOpportunity struct {
	CheckID string      `json:"check_id"`
	Value   interface{} `json:"value"`
	Savings interface{} `json:"savings"`
}

// LicensingImpact records that a check needs a licensing change to comply.
type LicensingImpact struct {
	CheckID string      `json:"check_id"`
	Impact  interface{} `json:"impact"`
}

// ExtractMSP collects cost and licensing records in finding order. Nothing is
// deduplicated.
func ExtractMSP(findings []Finding) ([]CostOpportunity, []LicensingImpact) {
	costs := []CostOpportunity{}
	licensing := []LicensingImpact{}
	for _, f := range findings {
		p := f.Payload
		rec, hasRec := p.truthy("msp_recommendation")
		value, hasValue := p.truthy("msp_value")
		savings, hasSavings := p.truthy("potential_savings")
		if hasRec || hasValue || hasSavings {
			c := CostOpportunity{CheckID: f.CheckID, Value: "", Savings: ""}
			switch {
			case hasRec:
				c.Value = rec
			case hasValue:
				c.Value = value
			}
			if hasSavings {
				c.Savings = savings
			}
			costs = append(costs, c)
		}
		if impact, ok := p.truthy("licensing_impact"); ok {
			licensing = append(licensing, LicensingImpact{CheckID: f.CheckID, Impact: impact})
		}
	}
	return costs, licensing
}
