package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskCheck names the risk check that rejected a position.
type RiskCheck string

const (
	CheckNone          RiskCheck = ""
	CheckExpectedROI   RiskCheck = "expected_roi"
	CheckExposure      RiskCheck = "exposure"
	CheckCategoryLimit RiskCheck = "category_limit"
	CheckDailyLoss     RiskCheck = "daily_loss"
	CheckEmergencyExit RiskCheck = "emergency_exit"
	CheckSpread        RiskCheck = "spread"
	CheckBalance       RiskCheck = "balance"
)

// Position is the sizing decision for one verified candidate. A rejected
// position carries the failing Check and a human-readable Reason.
type Position struct {
	ID                     string          `json:"id"`
	MarketID               string          `json:"market_id"`
	Question               string          `json:"question"`
	Category               Category        `json:"category"`
	OutcomeIndex           int             `json:"outcome_index"`
	Outcome                string          `json:"outcome"`
	TokenID                string          `json:"token_id,omitempty"`
	Probability            float64         `json:"probability"`
	EntryProbability       float64         `json:"entry_probability"`
	Size                   decimal.Decimal `json:"size_usd"`
	ExpectedROIPercent     float64         `json:"expected_roi_percent"`
	ExpectedValueUSD       float64         `json:"expected_value_usd"`
	VerificationConfidence float64         `json:"verification_confidence"`
	Approved               bool            `json:"approved"`
	Check                  RiskCheck       `json:"failed_check,omitempty"`
	Reason                 string          `json:"reason,omitempty"`
	Clamped                bool            `json:"clamped"`
	CreatedAt              time.Time       `json:"created_at"`
}

// PositionRecord pairs a sizing decision with its execution outcome, if any.
type PositionRecord struct {
	Position Position     `json:"position"`
	Result   *OrderResult `json:"result,omitempty"`
}
