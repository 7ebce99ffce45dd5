package service

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/folio/internal/config"
	"github.com/folio/internal/db"
)

func TestContactSubmitValidates(t *testing.T) {
	svc := NewContactService(setupServiceTestDB(t), nil, "", "salt")
	ctx := context.Background()

	cases := []struct {
		name  string
		input ContactInput
		want  error
	}{
		{"missing name", ContactInput{Email: "a@example.com", Message: "hi"}, ErrContactNameRequired},
		{"markup only name", ContactInput{Name: "<b></b>", Email: "a@example.com", Message: "hi"}, ErrContactNameRequired},
		{"missing email", ContactInput{Name: "Ann", Message: "hi"}, ErrContactEmailRequired},
		{"bad email", ContactInput{Name: "Ann", Email: "not-an-address", Message: "hi"}, ErrContactEmailInvalid},
		{"display name email", ContactInput{Name: "Ann", Email: "Ann <a@example.com>", Message: "hi"}, ErrContactEmailInvalid},
		{"missing message", ContactInput{Name: "Ann", Email: "a@example.com"}, ErrContactMessageRequired},
		{"too long", ContactInput{Name: "Ann", Email: "a@example.com", Message: strings.Repeat("字", MaxContactMessageLength+1)}, ErrContactMessageTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsContactValidation(err) {
				t.Fatalf("expected validation error")
			}
		})
	}

	if _, err := svc.Submit(ctx, ContactInput{Name: "Ann", Email: "a@example.com", Message: strings.Repeat("字", MaxContactMessageLength)}); err != nil {
		t.Fatalf("message at the limit should pass: %v", err)
	}
}

func TestContactSubmitSanitizesAndMails(t *testing.T) {
	gdb := setupServiceTestDB(t)
	mailer := &captureMailer{}
	svc := NewContactService(gdb, mailer, "owner@example.com", "salt")

	msg, err := svc.Submit(context.Background(), ContactInput{
		Name:     "Ann <script>alert(1)</script>",
		Email:    "ann@example.com",
		Message:  "Hello <b>there</b> & welcome",
		ClientIP: "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg.Name != "Ann" {
		t.Fatalf("expected script stripped from name, got %q", msg.Name)
	}
	if msg.Message != "Hello there & welcome" {
		t.Fatalf("unexpected sanitized message %q", msg.Message)
	}
	if msg.IPHash == "" || strings.Contains(msg.IPHash, "203.0.113.9") {
		t.Fatalf("expected hashed ip, got %q", msg.IPHash)
	}

	sent := mailer.last(t)
	if sent.To[0] != "owner@example.com" || sent.ReplyTo != "ann@example.com" {
		t.Fatalf("unexpected mail envelope: %+v", sent)
	}
	if !strings.Contains(sent.Body, "Hello there & welcome") {
		t.Fatalf("mail body missing message: %s", sent.Body)
	}

	var stored db.ContactMessage
	if err := gdb.First(&stored, msg.ID).Error; err != nil {
		t.Fatalf("load stored message: %v", err)
	}
	if !stored.Delivered {
		t.Fatalf("expected delivered flag")
	}
}

func TestContactDeliveryFailureKeepsRow(t *testing.T) {
	gdb := setupServiceTestDB(t)
	mailer := &captureMailer{err: errors.New("connection refused")}
	svc := NewContactService(gdb, mailer, "owner@example.com", "salt")

	msg, err := svc.Submit(context.Background(), ContactInput{Name: "Ann", Email: "ann@example.com", Message: "hi"})
	if !errors.Is(err, ErrContactDeliveryFailed) {
		t.Fatalf("expected delivery failure, got %v", err)
	}
	if msg == nil || msg.ID == 0 {
		t.Fatalf("expected stored message")
	}

	var stored db.ContactMessage
	if err := gdb.First(&stored, msg.ID).Error; err != nil {
		t.Fatalf("load stored message: %v", err)
	}
	if stored.Delivered || !strings.Contains(stored.DeliveryError, "connection refused") {
		t.Fatalf("unexpected stored state: %+v", stored)
	}
}

func TestContactListPaginates(t *testing.T) {
	svc := NewContactService(setupServiceTestDB(t), nil, "", "salt")
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C"} {
		if _, err := svc.Submit(ctx, ContactInput{Name: name, Email: "x@example.com", Message: "hi"}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	result, err := svc.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 3 || result.TotalPages != 2 || len(result.Items) != 1 {
		t.Fatalf("unexpected page: total=%d pages=%d items=%d", result.Total, result.TotalPages, len(result.Items))
	}
	if result.Items[0].Name != "A" {
		t.Fatalf("expected oldest message on last page, got %q", result.Items[0].Name)
	}
}

func TestSMTPMailerComposesHeaders(t *testing.T) {
	if NewSMTPMailer(config.SMTPConfig{}) != nil {
		t.Fatalf("expected nil mailer without host")
	}

	mailer := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: "2525", From: "site@example.com"})
	var gotAddr, gotFrom string
	var gotMsg []byte
	mailer.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotMsg = addr, from, msg
		return nil
	}

	err := mailer.Send(context.Background(), Mail{
		To:      []string{"owner@example.com"},
		ReplyTo: "ann@example.com\r\nBcc: victim@example.com",
		Subject: "Hi",
		Body:    "line one\nline two",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:2525" || gotFrom != "site@example.com" {
		t.Fatalf("unexpected envelope %s %s", gotAddr, gotFrom)
	}
	text := string(gotMsg)
	if strings.Contains(text, "\r\nBcc:") {
		t.Fatalf("header injection not stripped: %q", text)
	}
	if !strings.Contains(text, "line one\r\nline two") {
		t.Fatalf("body line endings not normalized: %q", text)
	}
}
