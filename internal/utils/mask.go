package utils

// MaskSecret keeps a short prefix so a secret can be told apart in logs.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "*****"
	}
	return s[:4] + "*****"
}
