package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type AttachmentInput struct {
	Name string `json:"name" validate:"required,max=255"`
	URL  string `json:"url" validate:"required,url"`
}

type CreateRequest struct {
	Title       string            `json:"title" validate:"required,max=255"`
	Description string            `json:"description" validate:"max=5000"`
	Priority    Priority          `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Frequency   Frequency         `json:"frequency" validate:"omitempty,oneof=once daily weekly monthly yearly"`
	DueDate     *time.Time        `json:"due_date"`
	Attachments []AttachmentInput `json:"attachments" validate:"max=20,dive"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Title        *string    `json:"title" validate:"omitempty,max=255"`
	Description  *string    `json:"description" validate:"omitempty,max=5000"`
	Priority     *Priority  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Frequency    *Frequency `json:"frequency" validate:"omitempty,oneof=once daily weekly monthly yearly"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	Completed    *bool      `json:"completed"`
}

var validate = validator.New()

// Normalize trims the title and fills defaults before validation.
func (r *CreateRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.Frequency == "" {
		r.Frequency = FrequencyOnce
	}
}

func (r *CreateRequest) Validate() error {
	if r.Title == "" {
		return inputError("task title is required")
	}
	return validationError(validate.Struct(r))
}

func (r *UpdateRequest) Validate() error {
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return inputError("task title is required")
	}
	return validationError(validate.Struct(r))
}

// Apply copies the set fields onto t.
func (r *UpdateRequest) Apply(t *Task) {
	if r.Title != nil {
		t.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		t.Description = strings.TrimSpace(*r.Description)
	}
	if r.Priority != nil {
		t.Priority = *r.Priority
	}
	if r.Frequency != nil {
		t.Frequency = *r.Frequency
	}
	if r.ClearDueDate {
		t.DueDate = nil
	} else if r.DueDate != nil {
		due := r.DueDate.UTC()
		t.DueDate = &due
	}
	if r.Completed != nil {
		t.Completed = *r.Completed
	}
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return inputError(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s is too long", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed '%s'", field, e.Tag()))
		}
	}
	return inputError(strings.Join(msgs, "; "))
}
