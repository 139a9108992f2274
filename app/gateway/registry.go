package gateway

import (
	"fmt"
	"sort"

	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
)

// Registry maps payment methods to gateways. It is filled once at startup and
// only read afterwards.
type Registry struct {
	gateways map[entity.PaymentMethod]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[entity.PaymentMethod]Gateway, len(gateways))}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

func (r *Registry) Register(g Gateway) {
	r.gateways[g.PaymentMethod()] = g
}

func (r *Registry) Resolve(method entity.PaymentMethod) (Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, method)
	}
	return g, nil
}

func (r *Registry) ResolveName(name string) (Gateway, error) {
	for _, g := range r.gateways {
		if g.Supports(name) {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, name)
}

func (r *Registry) Methods() []entity.PaymentMethod {
	methods := make([]entity.PaymentMethod, 0, len(r.gateways))
	for method := range r.gateways {
		methods = append(methods, method)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}
