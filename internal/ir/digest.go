package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix enables future
// algorithm migration without colliding with old digests.
const (
	DomainInterface  = "proofdex/interface/v1"
	DomainDictionary = "proofdex/dictionary/v1"
	DomainManifest   = "proofdex/manifest/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents domain/data
// boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InterfaceDigest fingerprints a function's exposed interface: the ordered
// sequence of its interface predicates. The driver compares digests across
// rounds to decide whether callers' SPOs must be refreshed. Digests are
// content identity only; they are never used as table indices.
func InterfaceDigest(fn string, predicates []TableValue) (string, error) {
	preds := make(FactArray, len(predicates))
	for i, p := range predicates {
		preds[i] = TableValueFact(p)
	}
	obj := FactObject{
		"fn":         FactString(fn),
		"predicates": preds,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("InterfaceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInterface, canonical), nil
}

// DictionaryDigest fingerprints the full ordered contents of a dictionary,
// given its categories in serialization order.
func DictionaryDigest(scope string, categories []string, entries [][]TableValue) (string, error) {
	if len(categories) != len(entries) {
		return "", fmt.Errorf("DictionaryDigest: %d categories, %d entry lists", len(categories), len(entries))
	}
	tables := make(FactArray, len(categories))
	for i, cat := range categories {
		rows := make(FactArray, len(entries[i]))
		for j, e := range entries[i] {
			rows[j] = TableValueFact(e)
		}
		tables[i] = FactObject{
			"category": FactString(cat),
			"entries":  rows,
		}
	}
	obj := FactObject{
		"scope":  FactString(scope),
		"tables": tables,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DictionaryDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDictionary, canonical), nil
}

// ManifestDigest fingerprints the project manifest (name plus ordered file
// list). Recorded on every ledger run so that histories from different
// project configurations are never conflated.
func ManifestDigest(project string, files []string) (string, error) {
	fs := make(FactArray, len(files))
	for i, f := range files {
		fs[i] = FactString(f)
	}
	obj := FactObject{
		"project": FactString(project),
		"files":   fs,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ManifestDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainManifest, canonical), nil
}

// MustInterfaceDigest is like InterfaceDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInterfaceDigest(fn string, predicates []TableValue) string {
	d, err := InterfaceDigest(fn, predicates)
	if err != nil {
		panic(err)
	}
	return d
}
