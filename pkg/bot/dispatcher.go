// Package bot turns an inbound WhatsApp message into a storefront response.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/catalog"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/intent"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/order"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/reply"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/session"
	"github.com/hugohenrick/whatsapp-commerce/pkg/chat"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

var botTracer = otel.Tracer("bot/dispatcher")

// GenericErrorMessage is sent when a message could not be processed.
const GenericErrorMessage = "Sorry, something went wrong on our side. Please try again in a moment."

// DefaultLockTimeout bounds the wait for a previous message of the same contact.
const DefaultLockTimeout = 30 * time.Second

const buttonIntent = "button"

// Deps groups the collaborators of the Dispatcher.
type Deps struct {
	Settings   repository.SettingsRepository
	Catalog    *catalog.Index
	Classifier intent.Classifier
	Service    *order.Service
	Locker     session.Locker
	History    chat.Repository
	Logger     logger.Logger

	// Handlers overrides Service.Handlers(); every intent type must be bound.
	Handlers    map[intent.Type]order.HandlerFunc
	LockTimeout time.Duration
}

// Dispatcher routes a message through configuration gate, classifier and handler.
type Dispatcher struct {
	settings    repository.SettingsRepository
	catalog     *catalog.Index
	classifier  intent.Classifier
	service     *order.Service
	handlers    map[intent.Type]order.HandlerFunc
	locker      session.Locker
	history     chat.Repository
	logger      logger.Logger
	lockTimeout time.Duration
}

// NewDispatcher validates that every intent type has a handler.
func NewDispatcher(d Deps) (*Dispatcher, error) {
	if d.Settings == nil || d.Catalog == nil || d.Classifier == nil || d.Service == nil {
		return nil, errors.New("bot: settings, catalog, classifier and service are required")
	}

	handlers := d.Handlers
	if handlers == nil {
		handlers = d.Service.Handlers()
	}
	var missing []string
	for _, t := range intent.All() {
		if handlers[t] == nil {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("bot: no handler for intents %s", strings.Join(missing, ", "))
	}

	log := d.Logger
	if log == nil {
		log = logger.NewNop()
	}
	locker := d.Locker
	if locker == nil {
		locker = session.NewKeyedMutex()
	}
	lockTimeout := d.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}

	return &Dispatcher{
		settings:    d.Settings,
		catalog:     d.Catalog,
		classifier:  d.Classifier,
		service:     d.Service,
		handlers:    handlers,
		locker:      locker,
		history:     d.History,
		logger:      log,
		lockTimeout: lockTimeout,
	}, nil
}

// Process answers one inbound message. It never panics and never returns nil.
func (d *Dispatcher) Process(ctx context.Context, tenantID, message string, contact *domain.Contact) (resp *reply.Response) {
	ctx, span := botTracer.Start(ctx, "Dispatcher.Process")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	log := d.logger.With("tenant_id", tenantID, "message", message)
	if contact != nil {
		log = log.With("contact_id", contact.ID)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while processing message", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			span.SetStatus(codes.Error, "panic")
			resp = &reply.Response{Handled: false, Text: GenericErrorMessage}
		}
	}()

	settings, err := d.settings.FindByTenant(ctx, tenantID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Error("Failed to load storefront settings", "error", err)
		return &reply.Response{Handled: false, Text: GenericErrorMessage}
	}
	if !settings.IsFullyConfigured() {
		log.Debug("Storefront not configured, ignoring message")
		return reply.NotHandled()
	}
	if contact == nil || contact.ID == "" {
		log.Error("Message without contact")
		return &reply.Response{Handled: false, Text: GenericErrorMessage}
	}

	resp, label, err := d.handle(ctx, tenantID, strings.TrimSpace(message), contact, settings)
	if err == nil && resp == nil {
		err = errors.New("handler returned no response")
	}
	if err != nil {
		log.Error("Failed to process message", "intent", label, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &reply.Response{Handled: false, Text: GenericErrorMessage}
	}

	span.SetAttributes(attribute.String("intent", label))
	d.saveHistory(ctx, log, tenantID, contact.ID, message, resp, label)
	return resp
}

func (d *Dispatcher) handle(ctx context.Context, tenantID, message string, contact *domain.Contact, settings *domain.Settings) (*reply.Response, string, error) {
	lockCtx, cancel := context.WithTimeout(ctx, d.lockTimeout)
	defer cancel()
	unlock, err := d.locker.Lock(lockCtx, session.Key(tenantID, contact.ID))
	if err != nil {
		return nil, "", fmt.Errorf("acquire contact lock: %w", err)
	}
	defer unlock()

	req := &order.Request{
		TenantID: tenantID,
		Contact:  contact,
		Message:  message,
		Settings: settings,
	}

	if action, productID, ok := reply.ParseButtonID(message); ok {
		resp, err := d.service.HandleButton(ctx, req, action, productID)
		return resp, buttonIntent, err
	}

	snapshot, err := d.catalog.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, "", err
	}
	req.Catalog = snapshot

	in, err := d.classifier.Classify(ctx, message, snapshot, settings)
	if err != nil {
		// the fallback classifier never fails; a bare AI classifier might
		d.logger.Warn("Classification failed", "tenant_id", tenantID, "error", err)
		in = intent.UnknownIntent()
	}
	req.Intent = in

	handler, ok := d.handlers[in.Type]
	if !ok {
		handler = d.handlers[intent.Unknown]
	}
	resp, err := handler(ctx, req)
	return resp, string(in.Type), err
}

func (d *Dispatcher) saveHistory(ctx context.Context, log logger.Logger, tenantID, contactID, message string, resp *reply.Response, label string) {
	if d.history == nil || resp == nil || resp.Text == "" {
		return
	}

	now := time.Now()
	for _, m := range []chat.Message{
		{TenantID: tenantID, ContactID: contactID, Role: chat.RoleUser, Content: message, Intent: label, Timestamp: now},
		{TenantID: tenantID, ContactID: contactID, Role: chat.RoleAssistant, Content: resp.Text, Intent: label, Timestamp: now.Add(time.Millisecond)},
	} {
		if err := d.history.SaveMessage(ctx, &m); err != nil {
			log.Warn("Failed to save chat history", "error", err)
			return
		}
	}
}
