// Package feedback scores transcribed recordings through a chat-completion
// provider and generates interview questions.
//
// The client walks an ordered model candidate list: a backend the provider
// does not recognize advances to the next candidate without consuming the
// retry budget, while transient failures retry under the shared policy.
// Model responses are normalized at the boundary (key-spelling folding,
// score clamping, derived overall score) before anything is persisted.
package feedback
