package rfq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"metaltrade/internal/documents"
	"metaltrade/internal/events"
	"metaltrade/internal/notify"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Mailer ставит письмо в очередь; доставка происходит вне транзакции
type Mailer interface {
	Enqueue(ctx context.Context, msg notify.Message)
}

// LiveNotifier пушит событие в открытые websocket-соединения пользователя
type LiveNotifier interface {
	Send(role string, userID int64, payload any) int
}

type DocumentGenerator interface {
	Generate(kind documents.Kind, data documents.Data) (string, *string, error)
}

type Deps struct {
	Mailer      Mailer
	Renderer    *notify.Renderer
	Live        LiveNotifier
	Events      events.Publisher
	Documents   DocumentGenerator
	Logger      logrus.FieldLogger
	FrontendURL string
}

// Engine - жизненный цикл заявки: создание, рассылка токенов, приём предложений, выбор победителя
type Engine struct {
	store       Store
	mailer      Mailer
	renderer    *notify.Renderer
	live        LiveNotifier
	events      events.Publisher
	docs        DocumentGenerator
	logger      logrus.FieldLogger
	validate    *validator.Validate
	frontendURL string
	now         func() time.Time
}

func NewEngine(store Store, deps Deps) (*Engine, error) {
	e := &Engine{
		store:       store,
		mailer:      deps.Mailer,
		renderer:    deps.Renderer,
		live:        deps.Live,
		events:      deps.Events,
		docs:        deps.Documents,
		logger:      deps.Logger,
		validate:    newValidator(),
		frontendURL: strings.TrimRight(deps.FrontendURL, "/"),
		now:         time.Now,
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	if e.events == nil {
		e.events = events.NopPublisher{}
	}
	if e.mailer == nil {
		e.mailer = discardMailer{}
	}
	if e.live == nil {
		e.live = discardLive{}
	}
	if e.renderer == nil {
		r, err := notify.NewRenderer()
		if err != nil {
			return nil, err
		}
		e.renderer = r
	}
	return e, nil
}

type discardMailer struct{}

func (discardMailer) Enqueue(context.Context, notify.Message) {}

type discardLive struct{}

func (discardLive) Send(string, int64, any) int { return 0 }

// push доставляет событие в фоне: переход уже зафиксирован, а зависшая вкладка
// не должна задерживать ответ
func (e *Engine) push(role string, userID int64, payload any) {
	go e.live.Send(role, userID, payload)
}

// publish не влияет на результат перехода: ошибки только в лог
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	ev.Timestamp = e.now().UTC()
	if err := e.events.Publish(ctx, ev); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": ev.Type,
			"request_id": ev.RequestID,
		}).Warn("Failed to publish event")
	}
}

func (e *Engine) supplierLink(requestID fmt.Stringer, token fmt.Stringer) string {
	return fmt.Sprintf("%s/request/%s?token=%s", e.frontendURL, requestID, token)
}

func (e *Engine) dealLink(requestID fmt.Stringer) string {
	return fmt.Sprintf("%s/deals/%s", e.frontendURL, requestID)
}
