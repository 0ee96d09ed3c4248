package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

// Mailer renders and sends templated emails
type Mailer struct {
	renderer *Renderer
	sender   Sender
	from     string
	metrics  *telemetry.Metrics
	log      *logger.Logger
}

// NewMailer creates a new Mailer. from is used for the Message-ID domain.
func NewMailer(renderer *Renderer, sender Sender, from string, metrics *telemetry.Metrics) *Mailer {
	return &Mailer{
		renderer: renderer,
		sender:   sender,
		from:     from,
		metrics:  metrics,
		log:      logger.Get().Named("mailer"),
	}
}

// SendTemplated renders kind for to and sends it, returning the Message-ID
func (m *Mailer) SendTemplated(ctx context.Context, to string, kind Kind, params Params) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "notification.send")
	defer span.End()

	start := time.Now()
	rendered, err := m.renderer.Render(kind, params)
	if err != nil {
		telemetry.RecordError(span, err)
		m.metrics.IncEmail(ctx, string(kind), telemetry.ResultFailure)
		return "", err
	}

	msg := &Message{
		MessageID: fmt.Sprintf("<%s@%s>", uuid.New().String(), domainOf(m.from)),
		From:      m.from,
		To:        to,
		Subject:   rendered.Subject,
		HTML:      rendered.HTML,
		Text:      rendered.Text,
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		telemetry.RecordError(span, err)
		m.metrics.IncEmail(ctx, string(kind), telemetry.ResultFailure)
		m.log.ErrorContext(ctx, "email send failed",
			zap.String("kind", string(kind)),
			logger.Email(to),
			zap.Error(err),
		)
		return "", fmt.Errorf("send %s email: %w", kind, err)
	}

	m.metrics.IncEmail(ctx, string(kind), telemetry.ResultSuccess)
	m.log.InfoContext(ctx, "email sent",
		zap.String("kind", string(kind)),
		zap.String("message_id", msg.MessageID),
		zap.Duration("duration", time.Since(start)),
	)
	return msg.MessageID, nil
}
