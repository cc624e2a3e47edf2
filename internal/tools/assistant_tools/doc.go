// Package assistant_tools exposes the scheduling assistant as MCP tools.
//
// Conversation:
//   - schedule_chat: run one conversational turn (book, cancel, edit, list, check)
//
// Bookings:
//   - schedule_list_bookings: list stored bookings
//   - schedule_cancel_bookings: cancel one or more bookings by id
//
// Availability:
//   - schedule_find_free_slots: free slots across stored bookings and the calendar
//   - schedule_list_calendars: calendars of the connected Google account
//   - schedule_query_freebusy: free/busy blocks of one or more calendars
package assistant_tools
