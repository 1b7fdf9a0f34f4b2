package domain

import (
	"errors"
	"strings"
	"time"
)

// Identity representa uma pessoa cadastrada no dispositivo.
// The embedding is owned by the identity: re-enrollment replaces it whole,
// there is no partial update.
type Identity struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Department  string     `json:"department,omitempty"`
	Embedding   Embedding  `json:"-"`
	ExternalID  *string    `json:"external_id,omitempty"`
	EnrolledAt  time.Time  `json:"enrolled_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate verifica os campos obrigatórios de uma identidade.
func (i *Identity) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return errors.New("identity id cannot be empty")
	}
	if strings.TrimSpace(i.DisplayName) == "" {
		return errors.New("display_name cannot be empty")
	}
	if len(i.Embedding) == 0 {
		return errors.New("identity embedding cannot be empty")
	}
	return nil
}
