// Package memory implements per-chat conversation history behind a
// dual-backend store: a durable remote vector database as the primary
// backend and an in-process bounded fallback that keeps the chat path
// alive when the primary is unreachable. The Manager facade owns backend
// selection; callers never branch on backend type.
package memory
