package notification

import (
	"context"
	"fmt"
	"net/mail"
	"sync"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

const emailTemplate = "notification"

type (
	// Recipients resolves the users an Intent is addressed to.
	Recipients interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		QueryActiveByRoles(ctx context.Context, roles ...string) ([]user.User, error)
	}

	// Dispatcher delivers notification intents in the background.
	// Enqueue never blocks the caller and delivery failures are only logged.
	Dispatcher struct {
		svc     *Service
		users   Recipients
		mailSvc core.EmailService
		logger  core.Logger
		workers int

		mu     sync.RWMutex
		queue  chan Intent
		closed bool
		group  *errgroup.Group
	}

	emailData struct {
		RecipientName string
		Message       string
	}
)

func NewDispatcher(
	svc *Service,
	users Recipients,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Dispatcher {
	vala.BeginValidation().Validate(
		vala.IsNotNil(svc, "svc"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic().Validate(
		vala.GreaterThan(conf.Notification.Workers, 0, "conf.Notification.Workers"),
		vala.GreaterThan(conf.Notification.QueueSize, 0, "conf.Notification.QueueSize"),
	).CheckAndPanic()

	return &Dispatcher{
		svc:     svc,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
		workers: conf.Notification.Workers,
		queue:   make(chan Intent, conf.Notification.QueueSize),
	}
}

// Start launches the workers. They run until Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	g := new(errgroup.Group)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for in := range d.queue {
				d.process(ctx, in)
			}
			return nil
		})
	}
	d.mu.Lock()
	d.group = g
	d.mu.Unlock()
}

// Stop refuses new intents, then waits for the queued ones to be processed.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	g := d.group
	d.mu.Unlock()

	if g == nil {
		return nil
	}
	return g.Wait()
}

// Enqueue hands in over to the workers. The intent is dropped when the queue is full or stopped.
func (d *Dispatcher) Enqueue(in Intent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped: dispatcher stopped", map[string]interface{}{"type": in.Type})
		return
	}
	select {
	case d.queue <- in:
	default:
		d.logger.Warn("notification dropped: queue full", map[string]interface{}{"type": in.Type})
	}
}

func (d *Dispatcher) process(ctx context.Context, in Intent) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("panic: %v", r)
			d.logger.Error(fmt.Sprintf("processing notification: %v", err), err)
		}
	}()

	recipients, err := d.resolveRecipients(ctx, in)
	if err != nil {
		d.logger.Error(fmt.Sprintf("resolving notification recipients: %v", err), err, map[string]interface{}{"type": in.Type})
		return
	}
	for _, usr := range recipients {
		if err = d.deliver(ctx, usr, in); err != nil {
			d.logger.Error(fmt.Sprintf("delivering notification: %v", err), err, map[string]interface{}{"type": in.Type}, usr)
		}
	}
}

func (d *Dispatcher) resolveRecipients(ctx context.Context, in Intent) ([]user.User, error) {
	seen := make(map[string]bool)
	recipients := make([]user.User, 0, len(in.RecipientIDs))

	for _, id := range in.RecipientIDs {
		if seen[id] {
			continue
		}
		usr, err := d.users.GetByID(ctx, id)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "finding user by ID")
		}
		seen[id] = true
		recipients = append(recipients, usr)
	}

	if len(in.RecipientRoles) > 0 {
		users, err := d.users.QueryActiveByRoles(ctx, in.RecipientRoles...)
		if err != nil {
			return nil, errors.Wrap(err, "querying users by roles")
		}
		for _, usr := range users {
			if !seen[usr.ID] {
				seen[usr.ID] = true
				recipients = append(recipients, usr)
			}
		}
	}
	return recipients, nil
}

func (d *Dispatcher) deliver(ctx context.Context, usr user.User, in Intent) error {
	pref, err := d.svc.GetPreference(ctx, usr.ID)
	if err != nil {
		return err
	}

	if pref.InApp {
		_, err = d.svc.Create(ctx, Notification{
			RecipientID: usr.ID,
			Type:        in.Type,
			Title:       in.Title,
			Message:     in.Message,
			Metadata:    in.Metadata,
		})
		if err != nil {
			return errors.Wrap(err, "creating notification")
		}
	}

	if pref.Email && usr.Email != "" {
		msg := &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      in.Title,
			TemplateName: emailTemplate,
			TemplateData: emailData{RecipientName: usr.Name, Message: in.Message},
		}
		if err = d.mailSvc.SendMessage(ctx, msg); err != nil {
			return errors.Wrap(err, "sending notification email")
		}
	}
	return nil
}
