// Package models holds the GORM row types behind the sync tables.
// Domain entities never carry gorm tags; models convert with ToDomain
// and FromDomain. Products are read-only here.
package models
