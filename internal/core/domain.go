package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

type (
	TransactionType string

	// Period is the bounded time window a budget cap applies to.
	Period string

	// Frequency is the repetition schedule of a recurring template.
	Frequency string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID     int64
		Name   string
		Type   TransactionType
		Color  string // hex display color, e.g. "#4caf50"
		Active bool
	}

	Transaction struct {
		ID            int64
		Type          TransactionType
		Amount        Money
		Description   string
		CategoryID    int64
		Date          Date
		Tags          []string
		PaymentMethod string
		Notes         string
	}

	// AlertThresholds are the budget consumption percentages that trigger
	// warning and critical alerts.
	AlertThresholds struct {
		Warning  float64
		Critical float64
	}

	Budget struct {
		ID         int64
		CategoryID int64 // expense category the cap applies to
		Amount     Money
		Period     Period
		StartDate  Date
		EndDate    Date
		// Spent is the authoritative running total maintained by the
		// service layer; remaining/percentage/state are derived on read.
		Spent      Money
		Thresholds AlertThresholds
	}

	// RecurringTransaction is a template the recurring processor
	// materializes into real transactions when due.
	RecurringTransaction struct {
		ID          int64
		Type        TransactionType
		Amount      Money
		Description string
		CategoryID  int64
		Every       Frequency
		StartDate   Date
		EndDate     Date // zero means open-ended
	}
)

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidPeriod     = errors.New("invalid budget period")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyCategoryName = errors.New("empty category name")
	ErrInvalidColor      = errors.New("invalid color")
	ErrMissingCategory   = errors.New("missing category reference")
	ErrInvalidDateRange  = errors.New("end date must not be before start date")
	ErrInvalidThresholds = errors.New("invalid alert thresholds")
)

// DefaultThresholds returns the default warning/critical alert percentages.
func DefaultThresholds() AlertThresholds {
	return AlertThresholds{Warning: 80, Critical: 95}
}

// NewDate creates a day-granularity Date in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the date in YYYY-MM-DD form, the wire and storage format.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (p Period) Valid() bool {
	return p == PeriodWeekly || p == PeriodMonthly || p == PeriodYearly
}

func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.CategoryID <= 0 {
		return ErrMissingCategory
	}
	return t.Date.Validate()
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyCategoryName
	}
	if len(name) > 50 {
		return errors.New("category name too long (max 50 characters)")
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	if c.Color != "" && !isHexColor(c.Color) {
		return ErrInvalidColor
	}
	return nil
}

func (b Budget) Validate() error {
	if b.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	if err := b.StartDate.Validate(); err != nil {
		return err
	}
	if err := b.EndDate.Validate(); err != nil {
		return err
	}
	if b.EndDate.Before(b.StartDate.Time) {
		return ErrInvalidDateRange
	}
	t := b.Thresholds
	if t.Warning <= 0 || t.Critical < t.Warning || t.Critical > 100 {
		return ErrInvalidThresholds
	}
	return nil
}

func (rt RecurringTransaction) Validate() error {
	if !rt.Type.Valid() {
		return ErrInvalidType
	}
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(rt.Description)) == 0 {
		return ErrEmptyDescription
	}
	if rt.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if !rt.Every.Valid() {
		return ErrInvalidFrequency
	}
	if err := rt.StartDate.Validate(); err != nil {
		return err
	}
	if !rt.EndDate.IsZero() && rt.EndDate.Before(rt.StartDate.Time) {
		return ErrInvalidDateRange
	}
	return nil
}

// isHexColor reports whether s is a #rrggbb hex color.
func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
