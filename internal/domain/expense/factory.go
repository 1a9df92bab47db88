package expense

import (
	"time"

	"github.com/google/uuid"

	"github.com/spendly/spendly/internal/domain/money"
)

// NewFromCreateRequest builds a persistable record from a validated create
// payload. The owner always comes from the caller's resolved identity and
// never from the payload.
func NewFromCreateRequest(userID string, req CreateExpenseRequest) Expense {
	now := time.Now().UTC()

	date := now
	if req.Date != nil {
		date = req.Date.UTC()
	}

	var amount money.Cents
	if req.Amount != nil {
		amount = money.FromDisplay(*req.Amount)
	}

	interval := req.RecurringInterval
	if !req.IsRecurring {
		interval = ""
	}

	attachments := make([]Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, Attachment{
			Filename:   a.Filename,
			URL:        a.URL,
			UploadedAt: now,
		})
	}

	return Expense{
		ID:                uuid.NewString(),
		UserID:            userID,
		Title:             req.Title,
		Amount:            amount,
		Category:          req.Category,
		Description:       req.Description,
		Date:              date,
		IsRecurring:       req.IsRecurring,
		RecurringInterval: interval,
		Tags:              NormalizeTags(req.Tags),
		Attachments:       attachments,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// ApplyUpdate merges a partial payload into an existing record and
// re-validates the result. The stored record is untouched on error.
func ApplyUpdate(e Expense, req UpdateExpenseRequest) (Expense, error) {
	now := time.Now().UTC()

	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Amount != nil {
		e.Amount = money.FromDisplay(*req.Amount)
	}
	if req.Category != nil {
		e.Category = *req.Category
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Date != nil {
		e.Date = req.Date.UTC()
	}
	if req.IsRecurring != nil {
		e.IsRecurring = *req.IsRecurring
	}
	if req.RecurringInterval != nil {
		e.RecurringInterval = *req.RecurringInterval
	}
	if !e.IsRecurring {
		// the interval only exists while the recurrence flag is set
		e.RecurringInterval = ""
	}
	if req.Tags != nil {
		e.Tags = NormalizeTags(*req.Tags)
	}
	if req.Attachments != nil {
		// entries echoed back unchanged keep their original upload time
		existing := make(map[string]time.Time, len(e.Attachments))
		for _, a := range e.Attachments {
			existing[a.Filename+"\x00"+a.URL] = a.UploadedAt
		}

		attachments := make([]Attachment, 0, len(*req.Attachments))
		for _, a := range *req.Attachments {
			uploadedAt := now
			if at, ok := existing[a.Filename+"\x00"+a.URL]; ok {
				uploadedAt = at
			}

			attachments = append(attachments, Attachment{
				Filename:   a.Filename,
				URL:        a.URL,
				UploadedAt: uploadedAt,
			})
		}
		e.Attachments = attachments
	}

	if err := e.Validate(); err != nil {
		return Expense{}, err
	}

	e.UpdatedAt = now

	return e, nil
}
