package domain

// PhoneNumber is the derived value object produced by normalizing a raw phone
// string. It is recomputed on demand and never mutated in place.
type PhoneNumber struct {
	RawInput       string `json:"raw_input"`
	NormalizedE164 string `json:"normalized_e164"`
	CountryCode    string `json:"country_code"`    // ISO 3166-1 alpha-2, e.g. "SN"
	NationalNumber string `json:"national_number"` // digits after the calling code
	OperatorCode   string `json:"operator_code,omitempty"`
}

// OperatorEntry is one row of the read-only operator prefix table. An operator
// may register multiple prefixes; lookups resolve to the longest match.
type OperatorEntry struct {
	CountryCode          string `json:"country_code"`
	Prefix               string `json:"prefix"`
	OperatorName         string `json:"operator_name"`
	OperatorCode         string `json:"operator_code"`
	MobileMoneySupported bool   `json:"mobile_money_supported"`
}

// VerifyMobileMoneyRequest is the DTO for verification API requests.
type VerifyMobileMoneyRequest struct {
	Phone   string `json:"phone"`
	Country string `json:"country,omitempty"`
}

// MobileMoneyVerificationResult is the outcome of a single verification
// attempt. Every attempt produces a fresh result; failures are carried in
// ErrorMessage rather than surfaced as errors.
type MobileMoneyVerificationResult struct {
	Valid                bool   `json:"valid"`
	APIVerified          bool   `json:"api_verified"`
	AccountName          string `json:"account_name,omitempty"`
	Country              string `json:"country,omitempty"`
	Operator             string `json:"operator,omitempty"`
	OperatorCode         string `json:"operator_code,omitempty"`
	MobileMoneySupported bool   `json:"mobile_money_supported"`
	NormalizedPhone      string `json:"normalized_phone,omitempty"`
	ErrorMessage         string `json:"error_message,omitempty"`
}
