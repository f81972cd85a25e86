// Package money builds the fixed-schema records of the economic audit trail.
//
// Every transaction is rendered as four comma-joined fields:
//
//	reason,[Kind] source,amount,[Kind] destination
//
// The CSV layout prefixes the timestamp column. Records are rendered,
// never parsed back.
package money

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnknownReason is recorded when the caller supplies no reason.
const UnknownReason = "Unknown Reason"

// Kind classifies a party to a transaction.
type Kind string

// Party kinds. KindServer stands for the system treasury and is used when
// a party is absent.
const (
	KindServer   Kind = "Server"
	KindResident Kind = "Resident"
	KindTown     Kind = "Town"
	KindNation   Kind = "Nation"
	KindUnknown  Kind = "Unknown"
)

// label is the text shown between the brackets of a descriptor.
func (k Kind) label() string {
	switch k {
	case KindServer, KindResident, KindTown, KindNation:
		return string(k)
	default:
		return "?"
	}
}

// Party is anything that can hold or move money.
type Party interface {
	EconomyName() string
	EconomyKind() Kind
}

// Account is a plain Party value.
type Account struct {
	Kind Kind
	Name string
}

// EconomyName implements Party.
func (a Account) EconomyName() string { return a.Name }

// EconomyKind implements Party.
func (a Account) EconomyKind() Kind { return a.Kind }

// Resident returns a resident account.
func Resident(name string) Account { return Account{Kind: KindResident, Name: name} }

// Town returns a town bank account.
func Town(name string) Account { return Account{Kind: KindTown, Name: name} }

// Nation returns a nation bank account.
func Nation(name string) Account { return Account{Kind: KindNation, Name: name} }

// Descriptor is the rendered identity of a party.
type Descriptor struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

// Describe captures a party. A nil party is the server treasury with an
// empty name.
func Describe(p Party) Descriptor {
	if p == nil {
		return Descriptor{Kind: KindServer}
	}
	kind := p.EconomyKind()
	if kind == "" {
		kind = KindUnknown
	}
	return Descriptor{Kind: kind, Name: p.EconomyName()}
}

// String renders "[Kind] name". The space is kept when name is empty.
func (d Descriptor) String() string {
	return "[" + d.Kind.label() + "] " + d.Name
}

// Transaction is one line of the money audit trail.
type Transaction struct {
	ID          string     `json:"id"`
	Time        time.Time  `json:"time"`
	Reason      string     `json:"reason"`
	Source      Descriptor `json:"source"`
	Amount      float64    `json:"amount"`
	Destination Descriptor `json:"destination"`
}

// NewID returns a transaction ID. IDs key the money index, so the full
// UUID is kept.
func NewID() string {
	return "txn-" + uuid.NewString()
}

// NewTransaction builds a transaction stamped with the current time.
// An empty reason becomes UnknownReason.
func NewTransaction(source Party, amount float64, destination Party, reason string) Transaction {
	if reason == "" {
		reason = UnknownReason
	}
	return Transaction{
		ID:          NewID(),
		Time:        time.Now(),
		Reason:      reason,
		Source:      Describe(source),
		Amount:      amount,
		Destination: Describe(destination),
	}
}

// Message renders the comma-joined fields that follow the timestamp.
func (t Transaction) Message() string {
	var b strings.Builder
	b.WriteString(t.Reason)
	b.WriteByte(',')
	b.WriteString(t.Source.String())
	b.WriteByte(',')
	b.WriteString(FormatAmount(t.Amount))
	b.WriteByte(',')
	b.WriteString(t.Destination.String())
	return b.String()
}

// FormatAmount renders an amount the way existing money.csv files do:
// plain decimal with at least one fractional digit for magnitudes in
// [1e-3, 1e7), scientific "1.5E7" notation outside it.
func FormatAmount(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	abs := math.Abs(f)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.ContainsRune(s, '.') {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(f, 'E', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "E")
	if !strings.ContainsRune(mantissa, '.') {
		mantissa += ".0"
	}
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-0")
	if neg {
		exp = "-" + exp
	}
	return mantissa + "E" + exp
}
