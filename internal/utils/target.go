package utils

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"
	"unicode"

	"github.com/raysh454/sift/internal/model"
	"golang.org/x/net/idna"
)

var (
	ErrEmptyTarget   = errors.New("target is empty")
	ErrInvalidTarget = errors.New("target is not valid for its type")
)

var (
	emailRe    = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	usernameRe = regexp.MustCompile(`^[\p{L}\p{N}._\-]{1,64}$`)
	labelRe    = regexp.MustCompile(`^[a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?$`)
)

// NormalizeTarget returns the canonical form of raw for targetType, or an
// error wrapping ErrEmptyTarget / ErrInvalidTarget.
//
//	username  "@Alice_1 "           -> "Alice_1"
//	email     " Bob@Example.COM"    -> "bob@example.com"
//	domain    "Bücher.example."     -> "xn--bcher-kva.example"
//	ip        "::ffff:10.0.0.1"     -> "10.0.0.1"
//	phone     "+1 (555) 010-0000"   -> "+15550100000"
//	entity    "  Acme   Corp "      -> "Acme Corp"
func NormalizeTarget(targetType model.TargetType, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyTarget
	}

	switch targetType {
	case model.TargetUsername:
		s = strings.TrimPrefix(s, "@")
		if !usernameRe.MatchString(s) {
			return "", fmt.Errorf("%w: username %q", ErrInvalidTarget, raw)
		}
		return s, nil

	case model.TargetEmail:
		s = strings.ToLower(s)
		local, domain, ok := strings.Cut(s, "@")
		if !ok {
			return "", fmt.Errorf("%w: email %q", ErrInvalidTarget, raw)
		}
		asciiDomain, err := NormalizeDomain(domain)
		if err != nil {
			return "", fmt.Errorf("%w: email %q", ErrInvalidTarget, raw)
		}
		s = local + "@" + asciiDomain
		if !emailRe.MatchString(s) {
			return "", fmt.Errorf("%w: email %q", ErrInvalidTarget, raw)
		}
		return s, nil

	case model.TargetDomain:
		d, err := NormalizeDomain(s)
		if err != nil {
			return "", fmt.Errorf("%w: domain %q", ErrInvalidTarget, raw)
		}
		return d, nil

	case model.TargetIP:
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return "", fmt.Errorf("%w: ip %q", ErrInvalidTarget, raw)
		}
		return addr.Unmap().String(), nil

	case model.TargetPhone:
		var b strings.Builder
		for _, r := range s {
			switch {
			case unicode.IsDigit(r):
				b.WriteRune(r)
			case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			default:
				return "", fmt.Errorf("%w: phone %q", ErrInvalidTarget, raw)
			}
		}
		digits := b.String()
		if len(digits) < 7 || len(digits) > 15 {
			return "", fmt.Errorf("%w: phone %q", ErrInvalidTarget, raw)
		}
		return "+" + digits, nil

	case model.TargetEntity:
		return strings.Join(strings.Fields(s), " "), nil

	default:
		return "", fmt.Errorf("%w: unknown target type %q", ErrInvalidTarget, targetType)
	}
}

// NormalizeDomain lower-cases d, strips a trailing dot, converts IDN labels to
// punycode and checks every label.
func NormalizeDomain(d string) (string, error) {
	d = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
	if d == "" || !strings.Contains(d, ".") {
		return "", ErrInvalidTarget
	}
	ascii, err := idna.Lookup.ToASCII(d)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if len(ascii) > 253 {
		return "", ErrInvalidTarget
	}
	for _, label := range strings.Split(ascii, ".") {
		if !labelRe.MatchString(label) {
			return "", ErrInvalidTarget
		}
	}
	return ascii, nil
}

// IsSubdomainOf reports whether host equals domain or sits below it.
func IsSubdomainOf(host, domain string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	return host == domain || strings.HasSuffix(host, "."+domain)
}
