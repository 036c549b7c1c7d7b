package service

import (
	"strings"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/util"
)

// Reasons reported by the evaluator. Soft signals are joined with "; ".
const (
	ReasonBlockedCountry       = "country is blocked for B2B partnerships"
	ReasonInvalidCountryCode   = "country code is not a two-letter ISO code"
	ReasonMalformedTaxID       = "tax ID is malformed"
	ReasonCountryNotAllowed    = "country is not on the allow-list"
	ReasonTaxIDCountryMismatch = "tax ID is registered in a different country"
	ReasonVATPatternMismatch   = "tax ID does not match the national VAT format"
	ReasonChecksumUnverifiable = "tax ID checksum could not be verified"
	ReasonMissingDocuments     = "no supporting document provided"
	ReasonAllChecksPassed      = "all automated checks passed"
	softReasonSeparator        = "; "
)

// EvaluationResult outcome of the automated checks
type EvaluationResult struct {
	Status model.VerificationStatus `json:"status"` // auto_approved, needs_review or auto_rejected
	Reason string                   `json:"reason"`
}

// VerificationRules evaluator configuration. Immutable after construction.
type VerificationRules struct {
	allowed          map[string]struct{}
	blocked          map[string]struct{}
	requireDocuments bool
}

// NewVerificationRules builds the rule set. An empty allow-list allows every country.
func NewVerificationRules(allowedCountries, blockedCountries []string, requireDocuments bool) VerificationRules {
	return VerificationRules{
		allowed:          countrySet(allowedCountries),
		blocked:          countrySet(blockedCountries),
		requireDocuments: requireDocuments,
	}
}

func countrySet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = util.NormalizeCountryCode(code)
		if code != "" {
			set[code] = struct{}{}
		}
	}
	return set
}

func (r VerificationRules) isBlocked(country string) bool {
	_, ok := r.blocked[country]
	return ok
}

func (r VerificationRules) isAllowed(country string) bool {
	if len(r.allowed) == 0 {
		return true
	}
	_, ok := r.allowed[country]
	if !ok && country == "GR" {
		_, ok = r.allowed["EL"]
	}
	return ok
}

// VerificationEvaluator classifies a submission. Implementations must be pure.
type VerificationEvaluator interface {
	Evaluate(submission model.CompanySubmission) EvaluationResult
}

type verificationEvaluator struct {
	rules VerificationRules
}

func NewVerificationEvaluator(rules VerificationRules) VerificationEvaluator {
	return &verificationEvaluator{rules: rules}
}

// Evaluate applies hard-fail checks first; the first hit decides. Otherwise all
// soft signals are collected in a fixed order.
func (e *verificationEvaluator) Evaluate(submission model.CompanySubmission) EvaluationResult {
	country := util.NormalizeCountryCode(submission.CountryCode)
	taxID := util.NormalizeTaxID(submission.TaxID)

	if e.rules.isBlocked(country) {
		return EvaluationResult{Status: model.VerificationStatusAutoRejected, Reason: ReasonBlockedCountry}
	}
	if !util.IsCountryCode(country) {
		return EvaluationResult{Status: model.VerificationStatusAutoRejected, Reason: ReasonInvalidCountryCode}
	}
	if !util.IsWellFormedTaxID(taxID) {
		return EvaluationResult{Status: model.VerificationStatusAutoRejected, Reason: ReasonMalformedTaxID}
	}

	var signals []string
	if !e.rules.isAllowed(country) {
		signals = append(signals, ReasonCountryNotAllowed)
	}
	if prefix := util.TaxIDPrefix(taxID); prefix != "" && prefix != util.VATPrefix(country) {
		signals = append(signals, ReasonTaxIDCountryMismatch)
	} else if !util.MatchesVATPattern(country, taxID) {
		signals = append(signals, ReasonVATPatternMismatch)
	} else if country == "DE" && !util.GermanVATChecksumValid(util.FullVATNumber(country, taxID)) {
		signals = append(signals, ReasonChecksumUnverifiable)
	}
	if e.rules.requireDocuments && !hasDocuments(submission.DocumentRefs) {
		signals = append(signals, ReasonMissingDocuments)
	}

	if len(signals) > 0 {
		return EvaluationResult{
			Status: model.VerificationStatusNeedsReview,
			Reason: strings.Join(signals, softReasonSeparator),
		}
	}
	return EvaluationResult{Status: model.VerificationStatusAutoApproved, Reason: ReasonAllChecksPassed}
}

func hasDocuments(refs []string) bool {
	for _, ref := range refs {
		if strings.TrimSpace(ref) != "" {
			return true
		}
	}
	return false
}
