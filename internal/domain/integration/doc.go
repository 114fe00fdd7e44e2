// Package integration contains the order-sync bounded context.
// It models connections to an external order-management API and the local
// mirror of the orders pulled from it.
//
// Key concepts:
//   - Account: one OAuth2 connection to the external system, with its tokens and sync status
//   - CanonicalStatus: the normalized order status derived from the raw external id/text pair
//   - PlatformOrder: typed value object decoded from the external order payload
//   - SalesOrder: local mirror of one external order, keyed by (external order id, account)
//
// Design Pattern: Ports & Adapters
//   - Ports (TokenProvider, OrderFetcher, repositories) are defined here in the domain layer
//   - Adapters (HTTP clients, GORM repositories) are in the infrastructure layer
package integration
