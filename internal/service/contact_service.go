package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/folio/internal/db"
	"github.com/folio/internal/logger"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// MaxContactMessageLength is measured in characters, not bytes.
const MaxContactMessageLength = 5000

var (
	ErrContactNameRequired    = errors.New("name is required")
	ErrContactEmailRequired   = errors.New("email is required")
	ErrContactEmailInvalid    = errors.New("email address is invalid")
	ErrContactMessageRequired = errors.New("message is required")
	ErrContactMessageTooLong  = fmt.Errorf("message must be at most %d characters", MaxContactMessageLength)
	ErrContactDeliveryFailed  = errors.New("message saved but could not be delivered")
)

// ContactInput is one submission of the contact form.
type ContactInput struct {
	Name     string
	Email    string
	Message  string
	ClientIP string
}

// ContactListResult aggregates paginated contact messages.
type ContactListResult struct {
	Items      []db.ContactMessage
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// ContactService stores contact messages and forwards them by mail.
type ContactService struct {
	db     *gorm.DB
	mailer Mailer
	to     string
	salt   string
	policy *bluemonday.Policy
}

// NewContactService creates a ContactService. With no mailer or no recipient
// messages are only stored.
func NewContactService(gdb *gorm.DB, mailer Mailer, to, salt string) *ContactService {
	return &ContactService{
		db:     gdb,
		mailer: mailer,
		to:     strings.TrimSpace(to),
		salt:   salt,
		policy: bluemonday.StrictPolicy(),
	}
}

// Submit validates, sanitizes and stores the message, then tries to mail it.
// A delivery failure keeps the stored row and returns ErrContactDeliveryFailed.
func (s *ContactService) Submit(ctx context.Context, input ContactInput) (*db.ContactMessage, error) {
	cleaned, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	msg := db.ContactMessage{
		Name:    cleaned.Name,
		Email:   cleaned.Email,
		Message: cleaned.Message,
		IPHash:  s.hashIP(input.ClientIP),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}

	if s.mailer == nil || s.to == "" {
		return &msg, nil
	}

	sendErr := s.mailer.Send(ctx, Mail{
		To:      []string{s.to},
		ReplyTo: msg.Email,
		Subject: "Portfolio Contact: " + msg.Name,
		Body: fmt.Sprintf("New contact form submission from your portfolio:\n\nName: %s\nEmail: %s\nMessage:\n%s\n\n---\nSent from your portfolio contact form\n",
			msg.Name, msg.Email, msg.Message),
	})
	if sendErr != nil {
		if errors.Is(sendErr, ErrMailerNotConfigured) {
			return &msg, nil
		}
		log := logger.Component("contact")
		log.Warn().Err(sendErr).Uint("message_id", msg.ID).Msg("contact mail delivery failed")

		deliveryError := sendErr.Error()
		if len(deliveryError) > 500 {
			deliveryError = deliveryError[:500]
		}
		msg.DeliveryError = deliveryError
		if err := s.db.WithContext(ctx).Model(&msg).Update("delivery_error", deliveryError).Error; err != nil {
			return &msg, err
		}
		return &msg, fmt.Errorf("%w: %v", ErrContactDeliveryFailed, sendErr)
	}

	msg.Delivered = true
	if err := s.db.WithContext(ctx).Model(&msg).Update("delivered", true).Error; err != nil {
		return &msg, err
	}
	return &msg, nil
}

// List returns stored messages, newest first.
func (s *ContactService) List(ctx context.Context, page, perPage int) (ContactListResult, error) {
	result := ContactListResult{
		Page:    normalizePage(page),
		PerPage: normalizePerPage(perPage, 20),
	}

	query := s.db.WithContext(ctx).Model(&db.ContactMessage{})
	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}

	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)
	offset := (result.Page - 1) * result.PerPage

	if err := query.Order("created_at desc").Order("id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Items).Error; err != nil {
		return result, err
	}
	return result, nil
}

func (s *ContactService) normalize(input ContactInput) (ContactInput, error) {
	out := ContactInput{
		Name:    s.plain(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Message: s.plain(input.Message),
	}
	if out.Name == "" {
		return out, ErrContactNameRequired
	}
	if out.Email == "" {
		return out, ErrContactEmailRequired
	}
	addr, err := mail.ParseAddress(out.Email)
	if err != nil || addr.Address != out.Email {
		return out, ErrContactEmailInvalid
	}
	if out.Message == "" {
		return out, ErrContactMessageRequired
	}
	if utf8.RuneCountInString(out.Message) > MaxContactMessageLength {
		return out, ErrContactMessageTooLong
	}
	return out, nil
}

// plain strips markup and returns readable text.
func (s *ContactService) plain(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(value)))
}

func (s *ContactService) hashIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip + s.salt))
	return hex.EncodeToString(sum[:])[:16]
}

// IsContactValidation reports whether err came from input checks.
func IsContactValidation(err error) bool {
	for _, target := range []error{
		ErrContactNameRequired,
		ErrContactEmailRequired,
		ErrContactEmailInvalid,
		ErrContactMessageRequired,
		ErrContactMessageTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
