package validate

const cpfLength = 11

// NormalizeCPF strips every non-digit character. It does not check length or
// checksum; pair it with CPF for that.
func NormalizeCPF(s string) string {
	out := make([]byte, 0, cpfLength)
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// CPF reports whether s, after normalisation, is an 11-digit CPF with valid
// check digits. Sequences of a single repeated digit are rejected.
func CPF(s string) bool {
	d := NormalizeCPF(s)
	if len(d) != cpfLength || allSame(d) {
		return false
	}
	return checkDigit(d[:9], 10) == d[9]-'0' && checkDigit(d[:10], 11) == d[10]-'0'
}

// checkDigit computes a modulo-11 verifier over digits with weights
// descending from weight. Remainders of 10 or 11 map to 0.
func checkDigit(digits string, weight int) byte {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (weight - i)
	}
	r := 11 - sum%11
	if r >= 10 {
		return 0
	}
	return byte(r)
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}
