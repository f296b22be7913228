package id

import (
	"strings"
	"time"
)

// Generator mints new IDs. The engine takes one so tests can control identity.
type Generator interface {
	New(prefix Prefix) ID
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(prefix Prefix) ID

// New implements Generator.
func (f GeneratorFunc) New(prefix Prefix) ID { return f(prefix) }

// TypeIDGenerator produces random, K-sortable TypeIDs.
type TypeIDGenerator struct{}

// New implements Generator.
func (TypeIDGenerator) New(prefix Prefix) ID { return New(prefix) }

// Suffix returns the encoded part of the ID after "prefix_".
func (i ID) Suffix() string {
	if !i.valid {
		return ""
	}
	return strings.TrimPrefix(i.inner.String(), string(i.Prefix())+"_")
}

// DocumentNumber renders a human-facing reference such as
// "ORD-20260115-7K3QZP" from a kind, a date and the random tail of i.
func DocumentNumber(kind string, at time.Time, i ID) string {
	s := i.Suffix()
	if len(s) > 6 {
		s = s[len(s)-6:]
	}
	return kind + "-" + at.UTC().Format("20060102") + "-" + strings.ToUpper(s)
}
