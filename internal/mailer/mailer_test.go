package mailer

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func TestComposeMultipart(t *testing.T) {
	raw, err := Compose("bookings@example.com", Message{
		To:      "alice@example.com",
		Subject: "Your appointment",
		Body:    "See you soon",
		Attachments: []Attachment{{
			Filename:    "invite.ics",
			ContentType: "text/calendar; method=REQUEST",
			Data:        []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"),
		}},
	}, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("unexpected content type %q: %v", mediaType, err)
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var types []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		types = append(types, p.Header.Get("Content-Type"))
	}
	if len(types) != 2 || !strings.HasPrefix(types[1], "text/calendar") {
		t.Fatalf("unexpected parts %v", types)
	}
}

func TestSendUsesRelay(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "user", "pw", "bookings@example.com")
	var gotAddr string
	var gotTo []string
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo = addr, to
		return nil
	}
	if err := s.Send(context.Background(), Message{To: "alice@example.com", Subject: "x", Body: "y"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || len(gotTo) != 1 || gotTo[0] != "alice@example.com" {
		t.Fatalf("unexpected relay call %s %v", gotAddr, gotTo)
	}
}

func TestSendRequiresConfig(t *testing.T) {
	s := NewSMTPSender("", 0, "", "", "")
	if err := s.Send(context.Background(), Message{To: "a@b.c"}); err == nil {
		t.Fatalf("expected configuration error")
	}
}
