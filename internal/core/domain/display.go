package domain

import "math"

// SafeDisplayCap is the highest fraud percentage ever shown for a verdict that
// is not fraudulent.
const SafeDisplayCap = 30

// Display is what the extension popup and the web UI render for a verdict.
type Display struct {
	Status          string `json:"status"` // "fraud" or "safe"
	Label           string `json:"label"`
	FraudPercentage int    `json:"fraudPercentage"`
	Confidence      int    `json:"confidence"`
}

// DisplayFromVerdict turns a verdict into display numbers. Confidence is always
// the confidence in the verdict's label. For a fraudulent verdict it is also
// the fraud percentage; for a safe one the fraud percentage is its complement,
// capped at SafeDisplayCap.
func DisplayFromVerdict(v Verdict) Display {
	confidence := int(math.Round(NormalizeConfidence(v.ConfidenceScore) * 100))

	if v.IsFraudulent {
		label := "Fraud detected"
		if confidence < 60 {
			label = "Possibly fraudulent"
		}
		return Display{
			Status:          "fraud",
			Label:           label,
			FraudPercentage: confidence,
			Confidence:      confidence,
		}
	}

	fraudPct := 100 - confidence
	if fraudPct > SafeDisplayCap {
		fraudPct = SafeDisplayCap
	}
	return Display{
		Status:          "safe",
		Label:           "Looks safe",
		FraudPercentage: fraudPct,
		Confidence:      confidence,
	}
}

// NormalizeConfidence brings a vendor confidence into [0,1]. Some vendors
// report percentages, so values in (1,100] are divided by 100.
func NormalizeConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c <= 0:
		return 0
	case c <= 1:
		return c
	case c <= 100:
		return c / 100
	default:
		return 1
	}
}
