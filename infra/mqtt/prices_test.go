package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgenrique/ess-controller/infra/logger"
	"github.com/mgenrique/ess-controller/infra/prices"
)

type fakeSubscriber struct {
	handlers map[string]Handler
}

func (f *fakeSubscriber) Subscribe(topic string, h Handler) error {
	if f.handlers == nil {
		f.handlers = map[string]Handler{}
	}
	f.handlers[topic] = h
	return nil
}

func TestSubscribePricesFeedsStore(t *testing.T) {
	now := time.Date(2024, 5, 14, 22, 10, 0, 0, time.UTC)
	store := prices.NewStore()
	sub := &fakeSubscriber{}
	require.NoError(t, SubscribePrices(sub, store, "pvpc/buy", "pvpc/sell", logger.NopLogger{}, func() time.Time { return now }))
	require.Len(t, sub.handlers, 2)

	sub.handlers["pvpc/buy"]("pvpc/buy", []byte(`{"price_22h":0.2,"price_23h":"0.3"}`))
	sub.handlers["pvpc/sell"]("pvpc/sell", []byte(`garbage`))
	assert.Equal(t, now, store.UpdatedAt())

	buy, sell, err := store.Prices(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.3, 0.3, 0.3, 0.3, 0.3}, buy.Values())
	assert.Equal(t, 0, sell.Len())
}

func TestSubscribePricesWithoutSellTopic(t *testing.T) {
	sub := &fakeSubscriber{}
	require.NoError(t, SubscribePrices(sub, prices.NewStore(), "buy", "", logger.NopLogger{}, nil))
	assert.Len(t, sub.handlers, 1)
}
