package mqtt

import (
	"time"

	"github.com/mgenrique/ess-controller/core/logger"
	"github.com/mgenrique/ess-controller/infra/prices"
)

// Subscriber is the receiving side of PahoClient.
type Subscriber interface {
	Subscribe(topic string, h Handler) error
}

// SubscribePrices feeds store with the price maps received on the buy and
// sell topics. An empty sell topic is skipped.
func SubscribePrices(sub Subscriber, store *prices.Store, buyTopic, sellTopic string, log logger.Logger, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	handler := func(set func(map[string]float64, time.Time)) Handler {
		return func(topic string, payload []byte) {
			attrs, err := prices.DecodeAttributes(payload)
			if err != nil {
				log.Warnf("ignoring prices on %s: %v", topic, err)
				return
			}
			set(attrs, now())
			log.Debugf("received %d prices on %s", len(attrs), topic)
		}
	}
	if err := sub.Subscribe(buyTopic, handler(store.SetBuy)); err != nil {
		return err
	}
	if sellTopic == "" {
		return nil
	}
	return sub.Subscribe(sellTopic, handler(store.SetSell))
}
