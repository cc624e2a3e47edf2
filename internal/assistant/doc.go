// Package assistant is the conversational scheduling orchestrator.
//
// Each call to Assistant.Handle classifies one chat message, extracts its
// slots against the conversation context, and runs the matching operation:
// booking, cancelling, editing, listing or availability checks. The durable
// booking store is the source of truth; an optional CalendarProvider mirrors
// every mutation into an external calendar and, when absent or failing, the
// assistant keeps working in simulation mode and says so in the reply.
//
// Conversation context comes from a SessionStore when the request carries a
// session id, and otherwise from the confirmations found in the chat history.
package assistant
