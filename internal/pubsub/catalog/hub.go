// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package catalog provides the in-process hub that broadcasts catalog
// changes to interested listeners, such as the realtime product feed.
package catalog

import (
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"

	"github.com/juju/storefront/core/product"
)

var logger = loggo.GetLogger("storefront.pubsub.catalog")

// ProductsChangedTopic is published whenever one or more products were
// created, updated, deleted or had their stock changed.
const ProductsChangedTopic = "catalog.products-changed"

// ProductsChanged is the message sent on ProductsChangedTopic.
type ProductsChanged struct {
	UUIDs []product.UUID
}

// Hub broadcasts catalog changes. It is safe for concurrent use.
type Hub struct {
	hub *pubsub.SimpleHub
}

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{
		hub: pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
			Logger: logger,
		}),
	}
}

// NotifyProductsChanged publishes a ProductsChanged message for the given
// products. Delivery to subscribers is asynchronous.
func (h *Hub) NotifyProductsChanged(uuids ...product.UUID) {
	msg := ProductsChanged{UUIDs: append([]product.UUID(nil), uuids...)}
	_ = h.hub.Publish(ProductsChangedTopic, msg)
}

// Subscribe registers handler to be called with every ProductsChanged
// message. Messages are delivered to a handler in the order they were
// published. The returned func unsubscribes the handler.
func (h *Hub) Subscribe(handler func(ProductsChanged)) func() {
	return h.hub.Subscribe(ProductsChangedTopic, func(topic string, data interface{}) {
		msg, ok := data.(ProductsChanged)
		if !ok {
			logger.Warningf("unexpected %T on topic %q", data, topic)
			return
		}
		handler(msg)
	})
}
