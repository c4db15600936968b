// Package dialog holds the single, process wide modal dialog state. Screens
// ask the Presenter to show a dialog; the UI layer subscribes and renders
// whatever is current.
package dialog

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/events"
	interrors "github.com/jrsteele09/go-jobportal-client/internal/errors"
	"github.com/jrsteele09/go-jobportal-client/internal/utils"
)

var (
	ErrNoDialog        = errors.New("no dialog is visible")
	ErrNoSecondary     = errors.New("dialog has no secondary button")
	ErrUnknownButton   = errors.New("unknown button")
	defaultButtonLabel = "OK"
)

type ButtonKind int

const (
	ButtonPrimary ButtonKind = iota
	ButtonSecondary
)

type Button struct {
	Label   string
	OnPress func()
}

type Request struct {
	ID        string
	Title     string
	Message   string
	Primary   Button
	Secondary *Button
}

// Presenter holds at most one visible dialog. Showing a dialog while
// another is visible replaces it.
type Presenter struct {
	mu      sync.Mutex
	current *Request
	changes *events.Bus[*Request]
}

func NewPresenter() *Presenter {
	return &Presenter{changes: events.NewBus[*Request]()}
}

// Show makes req the visible dialog and returns its id.
func (p *Presenter) Show(req Request) string {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Primary.Label = utils.Coalesce(req.Primary.Label, defaultButtonLabel)
	p.mu.Lock()
	p.current = &req
	p.mu.Unlock()

	p.changes.Publish(copyRequest(&req))
	return req.ID
}

// Current returns the visible dialog, if any.
func (p *Presenter) Current() (Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Request{}, false
	}
	return *p.current, true
}

func (p *Presenter) Visible() bool {
	_, ok := p.Current()
	return ok
}

// Press hides the dialog and then runs the pressed button's handler, so a
// handler may show a follow-up dialog.
func (p *Presenter) Press(kind ButtonKind) error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return ErrNoDialog
	}
	var handler func()
	switch kind {
	case ButtonPrimary:
		handler = p.current.Primary.OnPress
	case ButtonSecondary:
		if p.current.Secondary == nil {
			p.mu.Unlock()
			return ErrNoSecondary
		}
		handler = p.current.Secondary.OnPress
	default:
		p.mu.Unlock()
		return ErrUnknownButton
	}
	p.current = nil
	p.mu.Unlock()

	p.changes.Publish(nil)
	if handler != nil {
		handler()
	}
	return nil
}

// Dismiss hides the dialog without running any handler.
func (p *Presenter) Dismiss() {
	p.mu.Lock()
	wasVisible := p.current != nil
	p.current = nil
	p.mu.Unlock()
	if wasVisible {
		p.changes.Publish(nil)
	}
}

// Subscribe registers fn for dialog changes; fn receives nil when the
// dialog is hidden.
func (p *Presenter) Subscribe(fn func(*Request)) func() {
	return p.changes.Subscribe(fn)
}

func copyRequest(r *Request) *Request {
	c := *r
	return &c
}

// Alert builds a single button dialog.
func Alert(title, message string) Request {
	return Request{Title: title, Message: message, Primary: Button{Label: defaultButtonLabel}}
}

// Confirm builds a two button dialog.
func Confirm(title, message, confirmLabel string, onConfirm func()) Request {
	return Request{
		Title:     title,
		Message:   message,
		Primary:   Button{Label: confirmLabel, OnPress: onConfirm},
		Secondary: &Button{Label: "Cancel"},
	}
}

// FromError maps an operation failure onto an alert. Session invalidation
// is handled by a silent logout, so it yields no dialog.
func FromError(title string, err error) (Request, bool) {
	if err == nil || errors.Is(err, interrors.ErrSessionInvalidated) {
		return Request{}, false
	}
	if msg, ok := interrors.ValidationMessage(err); ok {
		return Alert(title, msg), true
	}
	return Alert(title, apiclient.ErrorMessage(err)), true
}
