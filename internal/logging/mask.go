package logging

import (
	"regexp"
	"strings"
)

var (
	rePassword = regexp.MustCompile(`(?i)(password=|pwd=)([^\s;&]+)`)
	reDSNPass  = regexp.MustCompile(`(?i)(://)([^:/@\s]+):([^@\s]+)(@)`)
	reEnvPass  = regexp.MustCompile(`(FIREBIRD_PASSWORD|ISC_PASSWORD)=\S*`)
)

// passwordFlags are argv entries whose following value is a credential.
var passwordFlags = map[string]bool{
	"--password": true,
	"-password":  true,
}

// Mask replaces password-like values in s with "***".
func Mask(s string) string {
	out := s
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reDSNPass.ReplaceAllString(out, "$1*:*$4")
	out = reEnvPass.ReplaceAllString(out, "$1=***")
	return out
}

// MaskArgv returns a copy of argv safe to log: values following a password
// flag, "--password=..." forms and any occurrence of the given secrets are
// replaced with "***".
func MaskArgv(argv []string, secrets ...string) []string {
	out := make([]string, len(argv))
	maskNext := false
	for i, a := range argv {
		switch {
		case maskNext:
			out[i] = "***"
			maskNext = false
			continue
		case passwordFlags[strings.ToLower(a)]:
			out[i] = a
			maskNext = true
			continue
		case strings.HasPrefix(strings.ToLower(a), "--password="):
			out[i] = a[:len("--password=")] + "***"
			continue
		}
		out[i] = MaskSecrets(a, secrets...)
	}
	return out
}

// minSubstringSecret is the shortest secret masked wherever it appears.
// Shorter secrets are masked only as whole words, so that a one-letter
// password does not mangle every diagnostic.
const minSubstringSecret = 4

// MaskSecrets replaces each non-empty secret in s with "***".
func MaskSecrets(s string, secrets ...string) string {
	for _, sec := range secrets {
		switch {
		case sec == "":
		case len(sec) >= minSubstringSecret:
			s = strings.ReplaceAll(s, sec, "***")
		default:
			re := regexp.MustCompile(`(^|[^\pL\pN_])` + regexp.QuoteMeta(sec) + `([^\pL\pN_]|$)`)
			// Adjacent matches share a separator; a second pass catches them.
			s = re.ReplaceAllString(s, "${1}***${2}")
			s = re.ReplaceAllString(s, "${1}***${2}")
		}
	}
	return s
}
