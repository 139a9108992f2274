package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const PaymentAdminServiceName = "crowdfunding.v1.PaymentAdmin"

// PaymentAdminServer is the internal admin API. Messages are
// google.protobuf.Struct so no generated code is needed.
type PaymentAdminServer interface {
	GetPayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefundPayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyPayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecalculateCampaign(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterPaymentAdminServer(s grpc.ServiceRegistrar, srv PaymentAdminServer) {
	s.RegisterService(&paymentAdminServiceDesc, srv)
}

var paymentAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: PaymentAdminServiceName,
	HandlerType: (*PaymentAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPayment", Handler: unaryHandler("GetPayment", PaymentAdminServer.GetPayment)},
		{MethodName: "RefundPayment", Handler: unaryHandler("RefundPayment", PaymentAdminServer.RefundPayment)},
		{MethodName: "VerifyPayment", Handler: unaryHandler("VerifyPayment", PaymentAdminServer.VerifyPayment)},
		{MethodName: "RecalculateCampaign", Handler: unaryHandler("RecalculateCampaign", PaymentAdminServer.RecalculateCampaign)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "crowdfunding/v1/payment_admin",
}

type adminMethod func(PaymentAdminServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, method adminMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + PaymentAdminServiceName + "/" + name

	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(PaymentAdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return method(srv.(PaymentAdminServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
