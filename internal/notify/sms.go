package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SMSSender はSMS送信のインターフェース。
type SMSSender interface {
	// SendSMS は指定の電話番号へメッセージを送信する。
	SendSMS(ctx context.Context, phoneNumber, message string) error
}

// SNSAPI はSNSSenderが利用するAWS SNSクライアントのサブセット。
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender はAmazon SNS経由でSMSを送信するSMSSender実装。
type SNSSender struct {
	client SNSAPI
}

// NewSNSSender はSNSSenderを生成する。
func NewSNSSender(client SNSAPI) *SNSSender {
	return &SNSSender{client: client}
}

// SendSMS は指定の電話番号へメッセージを送信する。
func (s *SNSSender) SendSMS(ctx context.Context, phoneNumber, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &phoneNumber,
		Message:     &message,
	})
	if err != nil {
		return fmt.Errorf("failed to publish SMS: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SMSSender = (*SNSSender)(nil)
