package picking

// MatchUPC reports whether a detected barcode satisfies the expected UPC,
// returning the code to submit for validation. Normalization covers only
// the UPC-A/EAN-13 length mismatch:
//
//   - 13-digit detected vs 12-digit expected: compare the detected code's
//     first 12 digits. The last digit is stripped unconditionally, without
//     validating it as a check digit; downstream product databases expect
//     this simpler truncation.
//   - 12-digit detected vs 13-digit expected: compare with a leading zero
//     prefixed to the detected code.
//
// Anything else is a hard non-match; there is no fuzzy or partial matching.
func MatchUPC(detected, expected string) (string, bool) {
	if detected == expected {
		return detected, true
	}
	if !allDigits(detected) || !allDigits(expected) {
		return "", false
	}
	if len(detected) == 13 && len(expected) == 12 {
		if truncated := detected[:12]; truncated == expected {
			return truncated, true
		}
	}
	if len(detected) == 12 && len(expected) == 13 {
		if padded := "0" + detected; padded == expected {
			return padded, true
		}
	}
	return "", false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
