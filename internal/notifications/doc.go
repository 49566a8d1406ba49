// Package notifications delivers batch summaries via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event
// class can be switched off individually in the [notifications] section.
package notifications
