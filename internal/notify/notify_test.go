package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
)

func TestNewSMTPMailer_ParsesEmbeddedTemplate(t *testing.T) {
	m, err := NewSMTPMailer("smtp.example.com", 587, "user", "pass", "noreply@example.com")
	if err != nil {
		t.Fatalf("NewSMTPMailer returned error: %v", err)
	}
	if m == nil {
		t.Fatal("NewSMTPMailer returned nil")
	}
}

func TestPasswordResetTemplate_RendersNameAndURL(t *testing.T) {
	m, err := NewSMTPMailer("smtp.example.com", 587, "user", "pass", "noreply@example.com")
	if err != nil {
		t.Fatalf("NewSMTPMailer returned error: %v", err)
	}

	var body strings.Builder
	err = m.tmpl.Execute(&body, struct {
		Name     string
		ResetURL string
	}{Name: "山田太郎", ResetURL: "https://vote.example.com/reset/abc123"})
	if err != nil {
		t.Fatalf("template execution failed: %v", err)
	}

	rendered := body.String()
	if !strings.Contains(rendered, "山田太郎") {
		t.Errorf("rendered template does not contain name: %s", rendered)
	}
	if !strings.Contains(rendered, "https://vote.example.com/reset/abc123") {
		t.Errorf("rendered template does not contain reset URL: %s", rendered)
	}
}

type mockSNS struct {
	publishFn func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.publishFn(ctx, params, optFns...)
}

func TestSNSSender_SendSMS(t *testing.T) {
	var gotPhone, gotMessage string
	sender := NewSNSSender(&mockSNS{
		publishFn: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			gotPhone = *params.PhoneNumber
			gotMessage = *params.Message
			return &sns.PublishOutput{}, nil
		},
	})

	err := sender.SendSMS(context.Background(), "+819012345678", "ようこそ")
	if err != nil {
		t.Fatalf("SendSMS returned error: %v", err)
	}
	if gotPhone != "+819012345678" {
		t.Errorf("phone number = %s, want +819012345678", gotPhone)
	}
	if gotMessage != "ようこそ" {
		t.Errorf("message = %s, want ようこそ", gotMessage)
	}
}

func TestSNSSender_SendSMS_PublishError(t *testing.T) {
	sender := NewSNSSender(&mockSNS{
		publishFn: func(_ context.Context, _ *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("throttled")
		},
	})

	err := sender.SendSMS(context.Background(), "+819012345678", "ようこそ")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to publish SMS") {
		t.Errorf("unexpected error message: %v", err)
	}
}
