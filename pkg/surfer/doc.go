// Package surfer relays one conversation turn through a private
// planner/executor pair that can browse the web.
//
// The planner sees a copy of the inbound conversation plus a reminder of
// where the browser currently is, and may answer directly or request one
// browser tool. The executor runs that tool against the shared Session and
// its output becomes the visible reply. Every tool reply carries a header
// describing the browser state:
//
//	Address: https://example.com/
//	Title: Example Domain
//	Viewport position: Showing page 1 of 1.
//	=======================
//	<viewport text>
package surfer
