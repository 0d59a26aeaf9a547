package phone

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sahelpay/transfer-service/internal/domain"
)

// Directory resolves (country, national number) pairs to mobile operators by
// longest-prefix match. It is built once at bootstrap and is read-only
// afterwards.
type Directory struct {
	// entries per country, sorted by descending prefix length so the first
	// match is the most specific one.
	byCountry map[string][]domain.OperatorEntry
}

// defaultOperatorEntries is the compiled-in prefix table. Deployments can
// replace it with an external JSON file via OPERATOR_TABLE_PATH.
var defaultOperatorEntries = []domain.OperatorEntry{
	// Senegal
	{CountryCode: "SN", Prefix: "77", OperatorName: "Orange Senegal", OperatorCode: "ORANGE_SN", MobileMoneySupported: true},
	{CountryCode: "SN", Prefix: "78", OperatorName: "Orange Senegal", OperatorCode: "ORANGE_SN", MobileMoneySupported: true},
	{CountryCode: "SN", Prefix: "76", OperatorName: "Free Senegal", OperatorCode: "FREE_SN", MobileMoneySupported: true},
	{CountryCode: "SN", Prefix: "70", OperatorName: "Expresso Senegal", OperatorCode: "EXPRESSO_SN", MobileMoneySupported: true},
	{CountryCode: "SN", Prefix: "75", OperatorName: "ProMobile", OperatorCode: "PROMOBILE_SN", MobileMoneySupported: false},
	// Côte d'Ivoire
	{CountryCode: "CI", Prefix: "07", OperatorName: "Orange Côte d'Ivoire", OperatorCode: "ORANGE_CI", MobileMoneySupported: true},
	{CountryCode: "CI", Prefix: "05", OperatorName: "MTN Côte d'Ivoire", OperatorCode: "MTN_CI", MobileMoneySupported: true},
	{CountryCode: "CI", Prefix: "01", OperatorName: "Moov Africa Côte d'Ivoire", OperatorCode: "MOOV_CI", MobileMoneySupported: true},
	// Mali
	{CountryCode: "ML", Prefix: "7", OperatorName: "Orange Mali", OperatorCode: "ORANGE_ML", MobileMoneySupported: true},
	{CountryCode: "ML", Prefix: "6", OperatorName: "Moov Africa Malitel", OperatorCode: "MOOV_ML", MobileMoneySupported: true},
	// Burkina Faso
	{CountryCode: "BF", Prefix: "7", OperatorName: "Orange Burkina Faso", OperatorCode: "ORANGE_BF", MobileMoneySupported: true},
	{CountryCode: "BF", Prefix: "5", OperatorName: "Moov Africa Burkina Faso", OperatorCode: "MOOV_BF", MobileMoneySupported: true},
	{CountryCode: "BF", Prefix: "6", OperatorName: "Telecel Faso", OperatorCode: "TELECEL_BF", MobileMoneySupported: false},
	// Togo
	{CountryCode: "TG", Prefix: "9", OperatorName: "Togocom", OperatorCode: "TOGOCOM_TG", MobileMoneySupported: true},
	{CountryCode: "TG", Prefix: "7", OperatorName: "Moov Africa Togo", OperatorCode: "MOOV_TG", MobileMoneySupported: true},
	// Niger
	{CountryCode: "NE", Prefix: "9", OperatorName: "Airtel Niger", OperatorCode: "AIRTEL_NE", MobileMoneySupported: true},
	{CountryCode: "NE", Prefix: "8", OperatorName: "Moov Africa Niger", OperatorCode: "MOOV_NE", MobileMoneySupported: true},
	// Guinea: Cellcom ranges overlap with the longer Orange/MTN prefixes, so
	// longest-prefix ordering decides.
	{CountryCode: "GN", Prefix: "6", OperatorName: "Cellcom Guinea", OperatorCode: "CELLCOM_GN", MobileMoneySupported: false},
	{CountryCode: "GN", Prefix: "62", OperatorName: "Orange Guinea", OperatorCode: "ORANGE_GN", MobileMoneySupported: true},
	{CountryCode: "GN", Prefix: "66", OperatorName: "MTN Guinea", OperatorCode: "MTN_GN", MobileMoneySupported: true},
}

// NewDirectory builds a directory from the given entries.
func NewDirectory(entries []domain.OperatorEntry) *Directory {
	byCountry := make(map[string][]domain.OperatorEntry)
	for _, entry := range entries {
		code := strings.ToUpper(strings.TrimSpace(entry.CountryCode))
		entry.CountryCode = code
		byCountry[code] = append(byCountry[code], entry)
	}
	for code := range byCountry {
		rows := byCountry[code]
		sort.SliceStable(rows, func(i, j int) bool {
			return len(rows[i].Prefix) > len(rows[j].Prefix)
		})
		byCountry[code] = rows
	}
	return &Directory{byCountry: byCountry}
}

// DefaultDirectory returns a directory built from the compiled-in table.
func DefaultDirectory() *Directory {
	return NewDirectory(defaultOperatorEntries)
}

// LoadDirectory builds the directory from an optional JSON file. An empty
// path yields the compiled-in defaults.
func LoadDirectory(path string) (*Directory, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultDirectory(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read operator table: %w", err)
	}
	var entries []domain.OperatorEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse operator table: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("operator table %s contains no entries", path)
	}
	return NewDirectory(entries), nil
}

// Lookup resolves the operator owning the national number's prefix range.
// It returns the most specific (longest) matching entry, or ok=false when no
// prefix matches: a valid phone number that is not on a known
// mobile-money-capable range.
func (d *Directory) Lookup(countryCode, nationalNumber string) (domain.OperatorEntry, bool) {
	rows, exists := d.byCountry[strings.ToUpper(strings.TrimSpace(countryCode))]
	if !exists {
		return domain.OperatorEntry{}, false
	}
	for _, entry := range rows {
		if strings.HasPrefix(nationalNumber, entry.Prefix) {
			return entry, true
		}
	}
	return domain.OperatorEntry{}, false
}
