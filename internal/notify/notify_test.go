package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByRecipient(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw)
	msg := Message{Recipient: "jan@example.com", Template: TemplateRegistration, Variables: map[string]string{"name": "Jan"}}
	if err := p.SendTemplated(context.Background(), msg); err != nil {
		t.Fatalf("SendTemplated: %v", err)
	}
	if len(fw.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fw.msgs))
	}
	if string(fw.msgs[0].Key) != "jan@example.com" {
		t.Fatalf("key = %q", fw.msgs[0].Key)
	}
	var got Message
	if err := json.Unmarshal(fw.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.Template != TemplateRegistration || got.Variables["name"] != "Jan" {
		t.Fatalf("decoded = %+v", got)
	}
}

type fakeReader struct {
	msgs      []kafka.Message
	committed int
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		f.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.committed += len(msgs)
	return nil
}

func (f *fakeReader) Close() error { return nil }

type recordingSender struct {
	got  []Message
	fail bool
}

func (r *recordingSender) SendTemplated(ctx context.Context, msg Message) error {
	r.got = append(r.got, msg)
	if r.fail {
		return errors.New("smtp down")
	}
	return nil
}

func TestConsumerCommitsEveryMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	good, _ := json.Marshal(Message{Recipient: "a@example.com", Template: TemplateMaturityReminder})
	r := &fakeReader{
		msgs:   []kafka.Message{{Value: good}, {Value: []byte("not json")}, {Value: good}},
		cancel: cancel,
	}
	s := &recordingSender{fail: true}
	c := NewConsumer(r, s, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.committed != 3 {
		t.Fatalf("committed = %d, want 3", r.committed)
	}
	if len(s.got) != 2 {
		t.Fatalf("delivered = %d, want 2", len(s.got))
	}
}

func TestSMTPSenderRender(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "localhost", Port: "25", From: "noreply@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		tmpl        Template
		wantSubject string
		wantBody    string
	}{
		{TemplateMaturityReminder, "Winter School: payment reminder", "due on 10. 1. 2024"},
		{TemplateRegistrationCanceled, "Winter School: registration canceled", "was canceled"},
		{TemplateRegistration, "Registration to Winter School", "Please pay 500"},
	}
	for _, tc := range cases {
		t.Run(string(tc.tmpl), func(t *testing.T) {
			subject, body, err := s.Render(Message{
				Recipient: "jan@example.com",
				Template:  tc.tmpl,
				Variables: map[string]string{
					"name":          "Jan <Novak>",
					"seminar_name":  "Winter School",
					"maturity_date": "10. 1. 2024",
					"fee":           "500",
				},
			})
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if subject != tc.wantSubject {
				t.Fatalf("subject = %q, want %q", subject, tc.wantSubject)
			}
			if !strings.Contains(body, tc.wantBody) {
				t.Fatalf("body %q does not contain %q", body, tc.wantBody)
			}
			if !strings.Contains(body, "Jan &lt;Novak&gt;") {
				t.Fatalf("body %q: name not escaped", body)
			}
		})
	}
}

func TestSMTPSenderUnknownTemplate(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Render(Message{Template: "nope"}); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
