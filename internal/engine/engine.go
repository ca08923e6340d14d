// Package engine composes the validation pipeline: normalize, reconcile,
// evaluate rules, classify. The engine is a pure, synchronous, stateless
// function of its input; a single instance may be shared by any number of
// goroutines without coordination.
package engine

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"apinvoice/internal/classify"
	"apinvoice/internal/logger"
	"apinvoice/internal/normalize"
	"apinvoice/internal/reconcile"
	"apinvoice/internal/rules"
	"apinvoice/pkg/models"
)

// Config holds every threshold the engine uses. It is validated at
// construction and immutable for the engine's lifetime, so a misconfigured
// instance can never silently misclassify.
type Config struct {
	// ToleranceAbsolute absorbs rounding in monetary equality checks,
	// in currency units.
	ToleranceAbsolute float64 `validate:"gt=0"`

	// ToleranceRelative is the discrepancy fraction above which a
	// reconciliation mismatch escalates to high severity.
	ToleranceRelative float64 `validate:"gt=0,lt=1"`

	// HighSeverityAbsolute is the absolute discrepancy above which a
	// mismatch escalates to high severity, in currency units.
	HighSeverityAbsolute float64 `validate:"gt=0"`

	// DateSkewDays is how far into the future an invoice date may sit
	// before it is anomalous.
	DateSkewDays int `validate:"gte=0"`

	// GraceWindowDays bounds how far due/ship dates may precede the
	// invoice date.
	GraceWindowDays int `validate:"gte=0"`

	// MaxInvoiceAgeDays is the staleness threshold for invoice dates.
	// Zero disables the check.
	MaxInvoiceAgeDays int `validate:"gte=0"`

	// LargeAmountThreshold flags totals above it for review.
	LargeAmountThreshold float64 `validate:"gt=0"`

	// TaxRateTolerance is the allowed distance, in percentage points, from
	// a common effective tax rate.
	TaxRateTolerance float64 `validate:"gte=0"`
}

// DefaultConfig returns the default threshold policy.
func DefaultConfig() Config {
	return Config{
		ToleranceAbsolute:    0.01,
		ToleranceRelative:    0.05,
		HighSeverityAbsolute: 50,
		DateSkewDays:         3,
		GraceWindowDays:      30,
		MaxInvoiceAgeDays:    90,
		LargeAmountThreshold: 100000,
		TaxRateTolerance:     0.5,
	}
}

// Engine validates extraction records and produces verdicts.
type Engine struct {
	normalizer *normalize.Normalizer
	calculator *reconcile.Calculator
	rules      *rules.RuleSet
	classifier *classify.Classifier
	log        zerolog.Logger
}

// New builds an engine from the given configuration. Invalid configuration
// is rejected here, before any invoice is processed.
func New(cfg Config) (*Engine, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("engine config validation failed: %w", err)
	}

	return &Engine{
		normalizer: normalize.NewNormalizer(),
		calculator: reconcile.NewCalculator(),
		rules: rules.NewRuleSet(rules.Params{
			ToleranceAbsolute:    decimal.NewFromFloat(cfg.ToleranceAbsolute),
			DateSkewDays:         cfg.DateSkewDays,
			GraceWindowDays:      cfg.GraceWindowDays,
			MaxInvoiceAgeDays:    cfg.MaxInvoiceAgeDays,
			LargeAmountThreshold: decimal.NewFromFloat(cfg.LargeAmountThreshold),
			TaxRateTolerance:     decimal.NewFromFloat(cfg.TaxRateTolerance),
		}),
		classifier: classify.NewClassifier(classify.Params{
			HighSeverityAbsolute: decimal.NewFromFloat(cfg.HighSeverityAbsolute),
			HighSeverityRelative: decimal.NewFromFloat(cfg.ToleranceRelative),
		}),
		log: logger.WithComponent("engine"),
	}, nil
}

// Validate runs the full pipeline on a raw extraction mapping. It returns an
// error only for data-shape problems (NormalizationError); every
// business-rule outcome, including a fully failed invoice, is data in the
// verdict. A non-empty exception list is a normal, common result.
func (e *Engine) Validate(raw map[string]interface{}) (*models.ValidationVerdict, error) {
	rec, err := e.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return e.ValidateRecord(rec), nil
}

// Normalize exposes the normalization stage for callers that want the
// canonical record alongside the verdict.
func (e *Engine) Normalize(raw map[string]interface{}) (*models.InvoiceFieldRecord, error) {
	return e.normalizer.Normalize(raw)
}

// ValidateRecord validates an already-normalized record. The record is not
// mutated; reconciled figures are additive.
func (e *Engine) ValidateRecord(rec *models.InvoiceFieldRecord) *models.ValidationVerdict {
	totals := e.calculator.Reconcile(rec)
	violations := e.rules.Evaluate(rec, totals)
	return e.classifier.Classify(rec, totals, violations)
}
