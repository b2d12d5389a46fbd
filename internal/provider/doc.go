// Package provider defines the event boundary between the translation
// pipeline and the provider layer, and ships an OpenAI-backed dispatcher.
package provider
