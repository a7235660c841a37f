// Package dispatch flushes the pending queue to the messaging provider.
//
// A cycle loads every pending item (optionally one config hash), groups the
// items by config hash and runs the flow named in the group's snapshot:
//
//	messages_batch   create lot, add messages in chunks, finish lot
//	emails_batch     same lot protocol on the email endpoints
//	messages_single  one AddMessageInvoice call per recipient
//	emails_single    one AddEmailInvoice call per recipient
//
// Failed lots send every item of the group through the RetryPolicy; single
// flows isolate failures to the one recipient.
package dispatch
