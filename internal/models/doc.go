// Package models defines the core domain models for mealscan.
//
// # Records
//
// Two record collections live in the data service:
//   - Profile: one row per user, carrying entitlement state (premium flag,
//     purchased credits, free-scan usage counter) plus opaque extra fields
//   - MealLogEntry: one row per scanned meal, owned by a profile
//
// # Session
//
// SessionUser is the client-side composite of a Profile and its meal log,
// newest entry first. It is owned by session.Store; consumers only ever see
// copies of it.
//
// # Design Principles
//
// 1. **Server-assigned identity**: meal ids and timestamps of record come from the data service
// 2. **Opaque extras**: fields the app does not interpret travel in Extra maps untouched
// 3. **Avoid circular references**: relationships use ID strings, never pointers
package models
