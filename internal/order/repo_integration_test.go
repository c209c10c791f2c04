//go:build integration

package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MikeMC777/ecom-ledger/internal/apperr"
	"github.com/MikeMC777/ecom-ledger/internal/order"
	"github.com/MikeMC777/ecom-ledger/internal/order/ordertest"
	"github.com/MikeMC777/ecom-ledger/internal/payment"
	"github.com/MikeMC777/ecom-ledger/internal/testutil"
)

func seed(ctx context.Context, t *testing.T, pool *pgxpool.Pool, stock int) {
	t.Helper()
	testutil.Exec(ctx, t, pool, `DELETE FROM restock_jobs`)
	testutil.Exec(ctx, t, pool, `DELETE FROM orders`)
	testutil.Exec(ctx, t, pool, `DELETE FROM products`)
	testutil.Exec(ctx, t, pool, `DELETE FROM users`)
	for _, id := range []string{userID, otherID} {
		testutil.Exec(ctx, t, pool, `
			INSERT INTO users (id, username, email, password_hash) VALUES ($1, $1, $1 || '@example.com', 'x')
		`, id)
	}
	testutil.Exec(ctx, t, pool, `
		INSERT INTO products (id, name, price, stock) VALUES ($1, 'Keyboard', 50.00, $2)
	`, productA, stock)
}

func stockOf(ctx context.Context, t *testing.T, pool *pgxpool.Pool) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productA).Scan(&n))
	return n
}

func TestPGRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pool := testutil.Postgres(ctx, t)
	repo := order.NewPGRepo(pool)
	gw := &ordertest.Gateway{Secret: secret}
	svc := order.NewService(repo, gw, nil, zap.NewNop(), order.Options{CancelWindowDays: 2})

	t.Run("concurrent placements never oversell", func(t *testing.T) {
		seed(ctx, t, pool, 5)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			sold int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Place(ctx, userID, codRequest(1))
				if err == nil {
					mu.Lock()
					sold++
					mu.Unlock()
					return
				}
				assert.True(t, apperr.Is(err, apperr.KindBadRequest), "unexpected error: %v", err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 5, sold)
		assert.Equal(t, 0, stockOf(ctx, t, pool))
	})

	t.Run("cancel restocks once", func(t *testing.T) {
		seed(ctx, t, pool, 8)

		res, err := svc.Place(ctx, userID, codRequest(2))
		require.NoError(t, err)
		assert.Equal(t, 6, stockOf(ctx, t, pool))
		assert.True(t, res.Order.Items[0].Price.Equal(decimal.RequireFromString("50.00")))

		_, err = svc.Cancel(ctx, userID, res.Order.ID, "bought the wrong model")
		require.NoError(t, err)
		assert.Equal(t, 8, stockOf(ctx, t, pool))

		_, err = svc.Cancel(ctx, userID, res.Order.ID, "bought the wrong model")
		require.Error(t, err)
		n, err := svc.ApplyPending(ctx, 10)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, 8, stockOf(ctx, t, pool))

		// deleting a cancelled order does not restock again
		require.NoError(t, svc.Delete(ctx, res.Order.ID))
		assert.Equal(t, 8, stockOf(ctx, t, pool))
	})

	t.Run("delete restocks active order", func(t *testing.T) {
		seed(ctx, t, pool, 3)

		res, err := svc.Place(ctx, userID, codRequest(3))
		require.NoError(t, err)
		assert.Equal(t, 0, stockOf(ctx, t, pool))

		require.NoError(t, svc.Delete(ctx, res.Order.ID))
		assert.Equal(t, 3, stockOf(ctx, t, pool))

		_, err = repo.Get(ctx, res.Order.ID)
		assert.ErrorIs(t, err, order.ErrNotFound)
	})

	t.Run("razorpay order verified by signature", func(t *testing.T) {
		seed(ctx, t, pool, 2)

		req := codRequest(1)
		req.PaymentMethod = order.PaymentRazorpay
		req.CardDetails = []byte(`{"last4":"4242"}`)
		res, err := svc.Place(ctx, userID, req)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPending, res.Order.Status)

		sig := payment.Signature(secret, res.Order.GatewayOrderID, "pay_1")
		vr, err := svc.VerifyPayment(ctx, userID, order.VerifyRequest{
			GatewayOrderID: res.Order.GatewayOrderID, GatewayPaymentID: "pay_1", Signature: sig,
		})
		require.NoError(t, err)
		assert.True(t, vr.Verified)
		assert.Equal(t, order.StatusOrdered, vr.Order.Status)
		assert.Equal(t, order.PaymentCompleted, vr.Order.PaymentStatus)
		assert.JSONEq(t, `{"last4":"4242"}`, string(vr.Order.CardDetails))

		// a later forged callback does not downgrade the payment
		vr, err = svc.VerifyPayment(ctx, userID, order.VerifyRequest{
			GatewayOrderID: res.Order.GatewayOrderID, GatewayPaymentID: "pay_2", Signature: "forged",
		})
		require.NoError(t, err)
		assert.False(t, vr.Verified)
		assert.Equal(t, order.PaymentCompleted, vr.Order.PaymentStatus)
	})

	t.Run("cancel window uses calendar days", func(t *testing.T) {
		seed(ctx, t, pool, 1)

		res, err := svc.Place(ctx, userID, codRequest(1))
		require.NoError(t, err)
		testutil.Exec(ctx, t, pool, `UPDATE orders SET purchased_at = NOW() - INTERVAL '3 days' WHERE id = $1`, res.Order.ID)

		_, err = svc.Cancel(ctx, userID, res.Order.ID, "arrived far too late")
		require.True(t, apperr.Is(err, apperr.KindForbidden), "got %v", err)
		assert.Equal(t, 0, stockOf(ctx, t, pool))
	})

	t.Run("pending restock survives a failed apply", func(t *testing.T) {
		seed(ctx, t, pool, 4)

		res, err := svc.Place(ctx, userID, codRequest(4))
		require.NoError(t, err)
		require.NoError(t, repo.Transition(ctx, res.Order.ID, order.StatusOrdered, order.StatusCancelled, "ops", time.Now()))

		jobs, err := repo.PendingRestocks(ctx, res.Order.ID, 0)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, 4, jobs[0].Quantity)

		r := order.NewReconciler(svc, time.Minute, 10, zap.NewNop())
		r.Tick(ctx)
		assert.Equal(t, 4, stockOf(ctx, t, pool))

		applied, err := repo.ApplyRestock(ctx, jobs[0].ID)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, 4, stockOf(ctx, t, pool))
	})
}
