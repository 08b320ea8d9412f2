// Package conversation implements a per-chat finite state machine for
// question/answer flows. States carry the questions to present, groups
// define the navigable order, and the engine applies handler directives
// (data updates, state targets, exception signals) to drive a
// conversation forward. Transport and persistence are injected, so the
// package is domain-agnostic and can be reused across bots.
package conversation
