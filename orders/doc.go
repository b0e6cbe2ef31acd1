// Package orders runs many independent order machines behind a store, with a
// prometheus metrics listener and a Kafka event consumer.
package orders
