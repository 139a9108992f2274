package callback

import (
	"context"
	"errors"
	"fmt"

	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
)

var ErrNoHandlerForMethod = errors.New("no callback handler for payment method")

// Handler authenticates and interprets callbacks of one payment method.
type Handler interface {
	PaymentMethod() entity.PaymentMethod
	// ValidateCallback reports whether the callback belongs to payment. It
	// must reject a session or correlation id other than the one stored at
	// preparation.
	ValidateCallback(ctx context.Context, payment *entity.Payment, req *Request) bool
	HandleCallback(ctx context.Context, payment *entity.Payment, req *Request) (*Result, error)
}

type Registry struct {
	handlers map[entity.PaymentMethod]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[entity.PaymentMethod]Handler, len(handlers))}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

func (r *Registry) Register(h Handler) {
	r.handlers[h.PaymentMethod()] = h
}

func (r *Registry) Resolve(method entity.PaymentMethod) (Handler, error) {
	h, ok := r.handlers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandlerForMethod, method)
	}
	return h, nil
}
