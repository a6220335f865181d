/*
Package protocol defines the messages, policies and error taxonomy shared
by every treesync component.

Error

This module defines the ErrorCode taxonomy: configuration, range, bound,
consistency, transport and serialization errors, plus the refinements the
service reports (stale snapshot, uninitialized commitment, bad proof...).
CodeOf maps the errors of the lower layers onto it.

Message

This module defines the requests a client sends to the sync store
service and the corresponding responses, along with constructors for
the response messages.

Policy

This module defines the rules every party must agree on: the hash
function, the tree height and the bound on a single increment.

Transaction

This module defines signed transactions calling the commitment contract
and the transitions the contract records when it accepts an update.
*/
package protocol
