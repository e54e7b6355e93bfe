// Package batch runs a bounded batch of independent work items, preserving
// input order in the results regardless of completion order.
package batch
