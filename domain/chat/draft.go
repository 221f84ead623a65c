package chat

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"marketchat/errors"
)

var validate = validator.New()

// Draft is a message as submitted by a sender, before the store assigned
// an id, a timestamp, and a sequence number.
type Draft struct {
	SenderID     string `validate:"required"`
	ReceiverID   string `validate:"required"`
	SenderName   string `validate:"required"`
	ReceiverName string
	Body         string `validate:"required"`
	Lang         string // filled by moderation screening, may stay empty
}

// Validate rejects a draft before any store interaction.
// The body is checked after trimming so whitespace-only messages fail too.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Body) == "" {
		return errors.ErrEmptyMessage
	}
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidationRejected, err)
	}
	if d.SenderID == d.ReceiverID {
		return errors.ErrSelfAddressed
	}
	return nil
}
