package core

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enumeration codes are assigned explicitly and are part of the persisted
// format: never renumber an existing entry, only append new ones.

type (
	FundType     int
	FundCategory int
	CardNetwork  int
	Bank         int
)

const (
	FundWallet      FundType = 0
	FundStash       FundType = 1
	FundSafe        FundType = 2
	FundBankAccount FundType = 3
	FundCreditCard  FundType = 4
	FundDebitCard   FundType = 5
	FundPrepaidCard FundType = 6
)

const (
	CategorySavings    FundCategory = 0
	CategoryRetirement FundCategory = 1
	CategoryEducation  FundCategory = 2
	CategorySanitary   FundCategory = 3
	CategoryExpenses   FundCategory = 4
	CategoryOther      FundCategory = 5
)

const (
	NetworkMastercard      CardNetwork = 0
	NetworkMaestro         CardNetwork = 1
	NetworkVisa            CardNetwork = 2
	NetworkAmericanExpress CardNetwork = 3
	NetworkOther           CardNetwork = 4
)

const (
	BankUnicredit   Bank = 0
	BankSanpaolo    Bank = 1
	BankMontepaschi Bank = 2
	BankBNL         Bank = 3
	BankPaypal      Bank = 4
	BankOther       Bank = 5
)

var (
	ErrEmptyTitle  = errors.New("empty fund title")
	ErrEmptyIBAN   = errors.New("empty IBAN")
	ErrEmptySerial = errors.New("empty serial number")
	ErrUnknownEnum = errors.New("unknown enum value")
)

var fundTypeNames = map[FundType]string{
	FundWallet:      "Wallet",
	FundStash:       "Stash",
	FundSafe:        "Safe",
	FundBankAccount: "BankAccount",
	FundCreditCard:  "CreditCard",
	FundDebitCard:   "DebitCard",
	FundPrepaidCard: "PrepaidCard",
}

var fundCategoryNames = map[FundCategory]string{
	CategorySavings:    "Savings",
	CategoryRetirement: "Retirement",
	CategoryEducation:  "Education",
	CategorySanitary:   "Sanitary",
	CategoryExpenses:   "Expenses",
	CategoryOther:      "Other",
}

var cardNetworkNames = map[CardNetwork]string{
	NetworkMastercard:      "Mastercard",
	NetworkMaestro:         "Maestro",
	NetworkVisa:            "Visa",
	NetworkAmericanExpress: "AmericanExpress",
	NetworkOther:           "Other",
}

var bankNames = map[Bank]string{
	BankUnicredit:   "Unicredit",
	BankSanpaolo:    "Sanpaolo",
	BankMontepaschi: "Montepaschi",
	BankBNL:         "BNL",
	BankPaypal:      "Paypal",
	BankOther:       "Other",
}

func (t FundType) String() string     { return fundTypeNames[t] }
func (c FundCategory) String() string { return fundCategoryNames[c] }
func (n CardNetwork) String() string  { return cardNetworkNames[n] }
func (b Bank) String() string         { return bankNames[b] }

func (t FundType) Valid() bool     { _, ok := fundTypeNames[t]; return ok }
func (c FundCategory) Valid() bool { _, ok := fundCategoryNames[c]; return ok }
func (n CardNetwork) Valid() bool  { _, ok := cardNetworkNames[n]; return ok }
func (b Bank) Valid() bool         { _, ok := bankNames[b]; return ok }

// ParseFundType resolves a name produced by FundType.String.
func ParseFundType(s string) (FundType, error) {
	for code, name := range fundTypeNames {
		if name == s {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: fund type %q", ErrUnknownEnum, s)
}

func ParseFundCategory(s string) (FundCategory, error) {
	for code, name := range fundCategoryNames {
		if name == s {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: fund category %q", ErrUnknownEnum, s)
}

func ParseCardNetwork(s string) (CardNetwork, error) {
	for code, name := range cardNetworkNames {
		if name == s {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: card network %q", ErrUnknownEnum, s)
}

func ParseBank(s string) (Bank, error) {
	for code, name := range bankNames {
		if name == s {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: bank %q", ErrUnknownEnum, s)
}

// The enums marshal by name so backup files stay human-readable, and
// unmarshalling an unknown name fails instead of defaulting.

func (t FundType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: fund type %d", ErrUnknownEnum, t)
	}
	return json.Marshal(t.String())
}

func (t *FundType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseFundType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (c FundCategory) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: fund category %d", ErrUnknownEnum, c)
	}
	return json.Marshal(c.String())
}

func (c *FundCategory) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseFundCategory(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (n CardNetwork) MarshalJSON() ([]byte, error) {
	if !n.Valid() {
		return nil, fmt.Errorf("%w: card network %d", ErrUnknownEnum, n)
	}
	return json.Marshal(n.String())
}

func (n *CardNetwork) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseCardNetwork(s)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

func (b Bank) MarshalJSON() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("%w: bank %d", ErrUnknownEnum, b)
	}
	return json.Marshal(b.String())
}

func (b *Bank) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseBank(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Fund is an immutable snapshot of a tracked store of money. Cash is a
// maintained quantity: it must only change through the movement service,
// which keeps it equal to the opening balance plus the net effect of all
// movements referencing the fund.
type Fund struct {
	ID           int64        `json:"fundID"`
	Title        string       `json:"title"`
	Type         FundType     `json:"type"`
	Category     FundCategory `json:"category"`
	Cash         float64      `json:"cash"`
	SerialNumber string       `json:"serialNumber"`
	Network      CardNetwork  `json:"network"`
	IBAN         string       `json:"iban"`
	Bank         Bank         `json:"bank"`
	Brand        string       `json:"brand"`
	CreatedAt    int64        `json:"creationDate"` // milliseconds since epoch
}

// HasSerial reports whether the fund type carries a card serial number.
func (f Fund) HasSerial() bool {
	switch f.Type {
	case FundCreditCard, FundDebitCard, FundPrepaidCard:
		return true
	default:
		return false
	}
}

func (f Fund) Validate() error {
	if !f.Type.Valid() {
		return fmt.Errorf("%w: fund type %d", ErrUnknownEnum, f.Type)
	}
	if !f.Category.Valid() {
		return fmt.Errorf("%w: fund category %d", ErrUnknownEnum, f.Category)
	}
	if strings.TrimSpace(f.Title) == "" {
		return ErrEmptyTitle
	}
	switch f.Type {
	case FundBankAccount:
		if strings.TrimSpace(f.IBAN) == "" {
			return ErrEmptyIBAN
		}
	case FundCreditCard, FundDebitCard, FundPrepaidCard:
		if strings.TrimSpace(f.SerialNumber) == "" {
			return ErrEmptySerial
		}
	}
	return nil
}

// WithCash returns a copy of the fund with a replaced balance.
func (f Fund) WithCash(cash float64) Fund {
	f.Cash = cash
	return f
}

const maxSerialLen = 16

// NormalizeSerial truncates card serial input to the persisted length.
func NormalizeSerial(s string) string {
	if len(s) > maxSerialLen {
		return s[:maxSerialLen]
	}
	return s
}

// NewID derives a positive 64-bit identifier from the low half of a
// random UUID.
func NewID() int64 {
	u := uuid.New()
	id := int64(binary.BigEndian.Uint64(u[8:]))
	if id < 0 {
		id = -id
	}
	return id
}

// NowMillis is the timestamp representation used across entities.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
