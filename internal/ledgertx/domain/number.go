package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	DefaultNumberMaxLength    = 15
	DefaultNumberSuffixLength = 4

	numberSeparator = " "
	suffixAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// SuffixGenerator returns a random alphanumeric string of the given length.
// Values are collision resistant, not unique.
type SuffixGenerator interface {
	Generate(length int) (string, error)
}

// RandomSuffixGenerator draws suffix characters from crypto/rand.
type RandomSuffixGenerator struct{}

func NewRandomSuffixGenerator() SuffixGenerator {
	return RandomSuffixGenerator{}
}

func (RandomSuffixGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidNumberFormat
	}
	max := big.NewInt(int64(len(suffixAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(suffixAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NumberFormat builds transaction numbers as "<prefix> <suffix>" bounded by
// MaxLength characters, where prefix is the grouping key cut down to fit.
type NumberFormat struct {
	MaxLength    int
	SuffixLength int
}

func DefaultNumberFormat() NumberFormat {
	return NumberFormat{
		MaxLength:    DefaultNumberMaxLength,
		SuffixLength: DefaultNumberSuffixLength,
	}
}

func (f NumberFormat) Validate() error {
	if f.SuffixLength <= 0 || f.MaxLength < f.SuffixLength {
		return ErrInvalidNumberFormat
	}
	return nil
}

// Prefix truncates the grouping key by characters, not bytes, and trims the
// whitespace the cut may leave behind.
func (f NumberFormat) Prefix(groupingKey string) string {
	room := f.MaxLength - f.SuffixLength - len(numberSeparator)
	if room <= 0 {
		return ""
	}
	key := strings.TrimSpace(groupingKey)
	runes := []rune(key)
	if len(runes) > room {
		key = strings.TrimSpace(string(runes[:room]))
	}
	return key
}

func (f NumberFormat) Compose(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + numberSeparator + suffix
}
