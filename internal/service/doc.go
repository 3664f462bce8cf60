// Package service implements the booking workflow: entitlement resolution,
// the credit ledger view, pricing, capacity negotiation, draft lifecycle,
// step validation, and the submission coordinator that ties them together.
//
// Components accept their collaborators as interfaces declared in this
// package and return sentinel or typed errors the API layer maps to HTTP
// status codes.
package service
