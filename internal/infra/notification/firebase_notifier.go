// Package notification delivers proximity notifications to the session's
// device through Firebase Cloud Messaging.
package notification

import (
	"context"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"mandi/config"
	"mandi/internal/domain/service"
)

type firebaseNotifier struct {
	client *messaging.Client
	token  string
}

// NewFirebaseNotifier creates a PushNotifier bound to the session's device
// token.
func NewFirebaseNotifier(ctx context.Context, cfg *config.FirebaseConfig) (service.PushNotifier, error) {
	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, errors.Wrap(err, "initialize firebase app")
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get messaging client")
	}

	return &firebaseNotifier{
		client: client,
		token:  cfg.DeviceToken,
	}, nil
}

// Notify sends one push notification to the session device.
func (n *firebaseNotifier) Notify(ctx context.Context, title, body string, data map[string]string) error {
	message := &messaging.Message{
		Token: n.token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := n.client.Send(ctx, message); err != nil {
		return errors.Wrap(err, "send notification")
	}

	return nil
}

type logNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a PushNotifier that only logs, for headless sessions
// and sessions without Firebase credentials.
func NewLogNotifier(logger *slog.Logger) service.PushNotifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(_ context.Context, title, body string, data map[string]string) error {
	n.logger.Info("notification",
		slog.String("title", title),
		slog.String("body", body),
		slog.Any("data", data))

	return nil
}
