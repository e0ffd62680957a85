package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/YeLlowseaG/clientseeker/internal/catalog"
	"github.com/YeLlowseaG/clientseeker/internal/orders"
	"github.com/YeLlowseaG/clientseeker/internal/testdb"
	"github.com/YeLlowseaG/clientseeker/internal/users"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
)

type stubGateway struct {
	name enums.PaymentProvider
	last GatewayRequest
	err  error
}

func (g *stubGateway) Name() enums.PaymentProvider { return g.name }

func (g *stubGateway) Open(_ context.Context, req GatewayRequest) (*GatewayCheckout, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &GatewayCheckout{ProviderOrderID: "prov-" + req.OrderNo, ApproveURL: "https://pay.example/approve"}, nil
}

type fixedNumbers struct{ n int }

func (f *fixedNumbers) Next() string {
	f.n++
	return fmt.Sprintf("CS%d", f.n)
}

func newTestService(t *testing.T, gateway *stubGateway) (Service, orders.Repository) {
	t.Helper()
	conn := testdb.Open(t)
	cat, err := catalog.New("", nil)
	require.NoError(t, err)
	repo := orders.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Catalog:   cat,
		Users:     users.NewRepository(conn),
		Orders:    repo,
		Numbers:   &fixedNumbers{},
		Gateways:  []Gateway{gateway},
		PublicURL: "https://app.example/",
	})
	require.NoError(t, err)
	return svc, repo
}

func TestStartCreatesPendingOrder(t *testing.T) {
	gateway := &stubGateway{name: enums.PaymentProviderPayPal}
	svc, repo := newTestService(t, gateway)
	user := uuid.New()

	res, err := svc.Start(context.Background(), Input{UserUUID: user, Email: "Buyer@Example.com", ProductID: "starter-monthly"})
	require.NoError(t, err)
	require.Equal(t, "CS1", res.OrderNo)
	require.Equal(t, enums.PaymentProviderPayPal, res.Provider)
	require.Equal(t, "prov-CS1", res.ProviderOrderID)
	require.Equal(t, "https://app.example/pay/success?order_no=CS1", gateway.last.ReturnURL)
	require.Equal(t, "buyer@example.com", gateway.last.Email)

	order, err := repo.FindByOrderNo(context.Background(), "CS1")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, int64(100), order.Credits)
	require.Equal(t, 1, order.ValidMonths)
	require.Equal(t, "prov-CS1", *order.ProviderOrderID)
	require.Equal(t, enums.PaymentProviderPayPal, *order.Provider)
}

func TestStartRejectsUnknownInputs(t *testing.T) {
	svc, _ := newTestService(t, &stubGateway{name: enums.PaymentProviderPayPal})
	ctx := context.Background()

	_, err := svc.Start(ctx, Input{UserUUID: uuid.New(), Email: "a@example.com", ProductID: "nope"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Start(ctx, Input{UserUUID: uuid.New(), Email: "a@example.com", ProductID: "starter-monthly", Provider: enums.PaymentProviderStripe})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Start(ctx, Input{Email: "a@example.com", ProductID: "starter-monthly"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Start(ctx, Input{UserUUID: uuid.New(), ProductID: "starter-monthly"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStartGatewayFailureLeavesOrderPending(t *testing.T) {
	gateway := &stubGateway{name: enums.PaymentProviderPayPal, err: errors.New("paypal down")}
	svc, repo := newTestService(t, gateway)

	_, err := svc.Start(context.Background(), Input{UserUUID: uuid.New(), Email: "a@example.com", ProductID: "starter-monthly"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	order, err := repo.FindByOrderNo(context.Background(), "CS1")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Nil(t, order.ProviderOrderID)
}
