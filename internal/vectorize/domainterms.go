package vectorize

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultDomainTerms is the built-in curated legal vocabulary, grouped by
// area of law. Each term receives a multiplicative boost over plain TF-IDF.
// A larger curated set can be supplied via LoadDomainTerms.
var DefaultDomainTerms = []DomainTerm{
	// Civil procedure
	{Term: "plaintiff", Category: "civil_procedure", Weight: 2.5},
	{Term: "defendant", Category: "civil_procedure", Weight: 2.5},
	{Term: "petition", Category: "civil_procedure", Weight: 2.0},
	{Term: "jurisdiction", Category: "civil_procedure", Weight: 2.0},
	{Term: "injunction", Category: "civil_procedure", Weight: 2.5},
	{Term: "appeal", Category: "civil_procedure", Weight: 2.0},
	{Term: "decree", Category: "civil_procedure", Weight: 2.0},
	{Term: "summons", Category: "civil_procedure", Weight: 2.0},
	{Term: "affidavit", Category: "civil_procedure", Weight: 2.0},
	{Term: "litigation", Category: "civil_procedure", Weight: 2.0},
	// Contracts
	{Term: "contract", Category: "contracts", Weight: 2.5},
	{Term: "breach", Category: "contracts", Weight: 2.5},
	{Term: "consideration", Category: "contracts", Weight: 2.0},
	{Term: "indemnity", Category: "contracts", Weight: 2.0},
	{Term: "arbitration", Category: "contracts", Weight: 2.5},
	{Term: "damages", Category: "contracts", Weight: 2.5},
	{Term: "rescission", Category: "contracts", Weight: 2.0},
	{Term: "warranty", Category: "contracts", Weight: 2.0},
	// Property
	{Term: "easement", Category: "property", Weight: 2.5},
	{Term: "tenancy", Category: "property", Weight: 2.5},
	{Term: "eviction", Category: "property", Weight: 2.5},
	{Term: "mortgage", Category: "property", Weight: 2.0},
	{Term: "encumbrance", Category: "property", Weight: 2.0},
	{Term: "conveyance", Category: "property", Weight: 2.0},
	{Term: "possession", Category: "property", Weight: 2.0},
	{Term: "title deed", Category: "property", Weight: 2.0},
	// Torts
	{Term: "negligence", Category: "torts", Weight: 2.5},
	{Term: "liability", Category: "torts", Weight: 2.5},
	{Term: "defamation", Category: "torts", Weight: 2.5},
	{Term: "nuisance", Category: "torts", Weight: 2.0},
	{Term: "trespass", Category: "torts", Weight: 2.0},
	{Term: "malpractice", Category: "torts", Weight: 2.0},
	// Family
	{Term: "custody", Category: "family", Weight: 2.5},
	{Term: "alimony", Category: "family", Weight: 2.5},
	{Term: "divorce", Category: "family", Weight: 2.5},
	{Term: "guardianship", Category: "family", Weight: 2.0},
	{Term: "maintenance", Category: "family", Weight: 2.0},
	// Criminal
	{Term: "prosecution", Category: "criminal", Weight: 2.5},
	{Term: "acquittal", Category: "criminal", Weight: 2.5},
	{Term: "bail", Category: "criminal", Weight: 2.0},
	{Term: "conviction", Category: "criminal", Weight: 2.5},
	{Term: "indictment", Category: "criminal", Weight: 2.0},
	{Term: "felony", Category: "criminal", Weight: 2.0},
	// Consumer
	{Term: "consumer", Category: "consumer", Weight: 2.0},
	{Term: "deficiency", Category: "consumer", Weight: 2.0},
	{Term: "compensation", Category: "consumer", Weight: 2.0},
	{Term: "refund", Category: "consumer", Weight: 2.0},
}

// LoadDomainTerms reads a curated vocabulary file: a JSON array of
// {term, category, weight} entries. Weights must be > 1.0 (enforced at Fit).
func LoadDomainTerms(path string) ([]DomainTerm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain vocabulary: %w", err)
	}
	var terms []DomainTerm
	if err := json.Unmarshal(data, &terms); err != nil {
		return nil, fmt.Errorf("parse domain vocabulary: %w", err)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("domain vocabulary %s is empty", path)
	}
	return terms, nil
}
