package expense

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spendly/spendly/internal/domain/money"
)

type Category string

const (
	CategoryFood           Category = "Food"
	CategoryTransportation Category = "Transportation"
	CategoryHousing        Category = "Housing"
	CategoryEntertainment  Category = "Entertainment"
	CategoryHealthcare     Category = "Healthcare"
	CategoryShopping       Category = "Shopping"
	CategoryEducation      Category = "Education"
	CategoryUtilities      Category = "Utilities"
	CategoryInsurance      Category = "Insurance"
	CategorySavings        Category = "Savings"
	CategoryOther          Category = "Other"
)

var Categories = []Category{
	CategoryFood,
	CategoryTransportation,
	CategoryHousing,
	CategoryEntertainment,
	CategoryHealthcare,
	CategoryShopping,
	CategoryEducation,
	CategoryUtilities,
	CategoryInsurance,
	CategorySavings,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

func (i Interval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly:
		return true
	}
	return false
}

var (
	ErrNotFound = errors.New("expense not found")
	ErrNotOwner = errors.New("expense not owned by caller")
)

type Attachment struct {
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Expense struct {
	ID                string       `json:"_id"`
	UserID            string       `json:"user"`
	Title             string       `json:"title"`
	Amount            money.Cents  `json:"amount"`
	Category          Category     `json:"category"`
	Description       string       `json:"description"`
	Date              time.Time    `json:"date"`
	IsRecurring       bool         `json:"isRecurring"`
	RecurringInterval Interval     `json:"recurringInterval,omitempty"`
	Tags              []string     `json:"tags"`
	Attachments       []Attachment `json:"attachments"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// ListFilter narrows List queries; nil pointer means "not filtered".
type ListFilter struct {
	Category *Category
	From     *time.Time
	To       *time.Time
	Limit    int
	Page     int
}

const categoryOneOf = "Food Transportation Housing Entertainment Healthcare Shopping Education Utilities Insurance Savings Other"

type AttachmentRequest struct {
	Filename string `json:"filename" binding:"required"`
	URL      string `json:"url" binding:"required"`
}

type CreateExpenseRequest struct {
	Title             string              `json:"title" binding:"required,min=1,max=100"`
	Amount            *float64            `json:"amount" binding:"required,gte=0"`
	Category          Category            `json:"category" binding:"required,oneof=Food Transportation Housing Entertainment Healthcare Shopping Education Utilities Insurance Savings Other"`
	Description       string              `json:"description" binding:"omitempty,max=500"`
	Date              *time.Time          `json:"date"`
	IsRecurring       bool                `json:"isRecurring"`
	RecurringInterval Interval            `json:"recurringInterval" binding:"required_if=IsRecurring true,omitempty,oneof=daily weekly monthly yearly"`
	Tags              []string            `json:"tags" binding:"omitempty,dive,max=50"`
	Attachments       []AttachmentRequest `json:"attachments" binding:"omitempty,dive"`
}

// UpdateExpenseRequest is a partial payload; nil fields keep the stored value.
type UpdateExpenseRequest struct {
	Title             *string              `json:"title" binding:"omitempty,min=1,max=100"`
	Amount            *float64             `json:"amount" binding:"omitempty,gte=0"`
	Category          *Category            `json:"category" binding:"omitempty,oneof=Food Transportation Housing Entertainment Healthcare Shopping Education Utilities Insurance Savings Other"`
	Description       *string              `json:"description" binding:"omitempty,max=500"`
	Date              *time.Time           `json:"date"`
	IsRecurring       *bool                `json:"isRecurring"`
	RecurringInterval *Interval            `json:"recurringInterval" binding:"omitempty,oneof=daily weekly monthly yearly"`
	Tags              *[]string            `json:"tags"`
	Attachments       *[]AttachmentRequest `json:"attachments"`
}

// FieldViolation is one broken constraint, keyed by the JSON field name.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate re-checks the record invariants. Used after merging a partial
// update, where binding tags alone cannot see the combined result.
func (e *Expense) Validate() error {
	var violations []FieldViolation

	if strings.TrimSpace(e.Title) == "" {
		violations = append(violations, FieldViolation{"title", "title is required"})
	} else if len(e.Title) > 100 {
		violations = append(violations, FieldViolation{"title", "title cannot exceed 100 characters"})
	}

	if e.Amount < 0 {
		violations = append(violations, FieldViolation{"amount", "amount cannot be negative"})
	}

	if !e.Category.Valid() {
		violations = append(violations, FieldViolation{"category", fmt.Sprintf("%q is not a valid category", e.Category)})
	}

	if len(e.Description) > 500 {
		violations = append(violations, FieldViolation{"description", "description cannot exceed 500 characters"})
	}

	if e.IsRecurring {
		if e.RecurringInterval == "" {
			violations = append(violations, FieldViolation{"recurringInterval", "recurring interval is required for recurring expenses"})
		} else if !e.RecurringInterval.Valid() {
			violations = append(violations, FieldViolation{"recurringInterval", fmt.Sprintf("%q is not a valid interval", e.RecurringInterval)})
		}
	} else if e.RecurringInterval != "" {
		violations = append(violations, FieldViolation{"recurringInterval", "recurring interval only applies to recurring expenses"})
	}

	if e.Date.IsZero() {
		violations = append(violations, FieldViolation{"date", "date is required"})
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	return nil
}

// NormalizeTags lowercases, trims and dedupes while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))

	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}

// SortCategoryStats orders by total descending, the way the stats endpoint
// reports them. Kept here so both the SQL path and tests agree on ties.
func SortCategoryStats(stats []CategoryStat) {
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalAmount > stats[j].TotalAmount
	})
}
